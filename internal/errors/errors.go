// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Admission errors. They are returned before any send is attempted.
var (
	ErrEmptyMessage         = errors.New("message body is required")
	ErrInvalidChannel       = errors.New("unknown channel")
	ErrNoRecipients         = errors.New("no eligible recipients")
	ErrQuotaExceeded        = errors.New("blast would exceed the daily sending quota")
	ErrProviderUnconfigured = errors.New("channel has no usable provider configuration")
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// ErrJobNotFoundID carries the id that was looked up.
type ErrJobNotFoundID struct {
	JobID string
}

func (e *ErrJobNotFoundID) Error() string {
	return fmt.Sprintf("job with ID %s not found", e.JobID)
}

// NewJobNotFound returns an error that matches ErrJobNotFound with errors.Is.
func NewJobNotFound(id string) error {
	return errors.Mark(&ErrJobNotFoundID{JobID: id}, ErrJobNotFound)
}

// QuotaExceeded wraps ErrQuotaExceeded with the numbers that caused the rejection.
func QuotaExceeded(requested, remaining int) error {
	return errors.Wrapf(ErrQuotaExceeded, "requested %d, remaining %d", requested, remaining)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
