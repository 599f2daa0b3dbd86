// internal/handler/job_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/quota"
)

// JobService is what the job endpoints need from the blast service
type JobService interface {
	GetJobProgress(ctx context.Context, id string) (model.Job, error)
	CancelJob(ctx context.Context, id string) error
	QuotaStatus(ctx context.Context) (map[model.Channel]quota.State, error)
}

// JobHandler serves job progress, cancellation and quota state
type JobHandler struct {
	Service JobService
	Log     zerolog.Logger
}

// GetJobHandler returns the current snapshot of an async blast
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.Service.GetJobProgress(r.Context(), id)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.CancelJob(r.Context(), id); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"jobId":   id,
	})
}

func (h *JobHandler) QuotaHandler(w http.ResponseWriter, r *http.Request) {
	states, err := h.Service.QuotaStatus(r.Context())
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, states)
}

func (h *JobHandler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
