package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		appErrors.ErrEmptyMessage:             http.StatusBadRequest,
		appErrors.ErrInvalidChannel:           http.StatusBadRequest,
		appErrors.ErrNoRecipients:             http.StatusBadRequest,
		appErrors.QuotaExceeded(401, 400):     http.StatusTooManyRequests,
		appErrors.ErrProviderUnconfigured:     http.StatusServiceUnavailable,
		appErrors.NewJobNotFound("abc"):       http.StatusNotFound,
		appErrors.ErrJobFinished:              http.StatusConflict,
		errors.New("database is on fire"):     http.StatusInternalServerError,
		appErrors.Wrap(errors.New("x"), "op"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, zerolog.Nop(), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestWriteError_EchoesClientErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, zerolog.Nop(), appErrors.NewJobNotFound("abc"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "job with ID abc not found")
}
