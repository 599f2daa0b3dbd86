// internal/handler/response.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case appErrors.Is(err, appErrors.ErrEmptyMessage),
		appErrors.Is(err, appErrors.ErrInvalidChannel),
		appErrors.Is(err, appErrors.ErrNoRecipients):
		return http.StatusBadRequest
	case appErrors.Is(err, appErrors.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case appErrors.Is(err, appErrors.ErrProviderUnconfigured):
		return http.StatusServiceUnavailable
	case appErrors.Is(err, appErrors.ErrJobNotFound):
		return http.StatusNotFound
	case appErrors.Is(err, appErrors.ErrJobFinished):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// WriteError writes {"success":false,"error":...}. Unexpected errors are logged and not echoed.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	WriteJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
