package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/handler"
)

// NewRouter wires every HTTP route. metrics may be nil.
func NewRouter(blasts *BlastController, jobs *handler.JobHandler, metrics http.Handler, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Blast routes
	r.Post("/blasts/sms", blasts.SendSMSBlast)
	r.Post("/blasts/email", blasts.SendEmailBlast)
	r.Get("/blasts/jobs/{id}", jobs.GetJobHandler)
	r.Post("/blasts/jobs/{id}/cancel", jobs.CancelJobHandler)

	r.Get("/quota", jobs.QuotaHandler)
	r.Get("/healthz", jobs.HealthHandler)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
