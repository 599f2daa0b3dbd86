// internal/controller/blast_controller.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/model"
)

const userHeader = "X-User"

type BlastService interface {
	StartSyncBlast(ctx context.Context, ch model.Channel, subject, body, user string) (model.Summary, error)
	StartAsyncBlast(ctx context.Context, ch model.Channel, subject, body, user string) (string, error)
}

type BlastController struct {
	Service BlastService
	Log     zerolog.Logger
}

type blastRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func decodeBlast(r *http.Request) (blastRequest, string, error) {
	var body blastRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, "", err
	}
	user := r.Header.Get(userHeader)
	if user == "" {
		user = "system"
	}
	return body, user, nil
}

// SendSMSBlast sends to every opted-in phone before responding.
func (c *BlastController) SendSMSBlast(w http.ResponseWriter, r *http.Request) {
	body, user, err := decodeBlast(r)
	if err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid body"})
		return
	}

	summary, err := c.Service.StartSyncBlast(r.Context(), model.ChannelSMS, body.Subject, body.Message, user)
	if err != nil {
		handler.WriteError(w, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// SendEmailBlast admits the blast and returns its job id; sending continues in the background.
func (c *BlastController) SendEmailBlast(w http.ResponseWriter, r *http.Request) {
	body, user, err := decodeBlast(r)
	if err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid body"})
		return
	}

	jobID, err := c.Service.StartAsyncBlast(r.Context(), model.ChannelEmail, body.Subject, body.Message, user)
	if err != nil {
		handler.WriteError(w, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"jobId":   jobID,
	})
}
