// internal/jobs/registry.go
package jobs

import (
	"context"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// Registry stores job progress records. Records expire a fixed TTL after the
// job's start time whatever their status.
//
// Get always returns a snapshot. Update applies fn to the stored record and
// returns a snapshot of the result; it is how the dispatch engine writes progress.
type Registry interface {
	Create(ctx context.Context, job model.Job) error
	Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error)
	Get(ctx context.Context, id string) (model.Job, error)
	Delete(ctx context.Context, id string) error
	// Sweep drops expired records and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}
