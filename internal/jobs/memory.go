package jobs

import (
	"context"
	"sync"
	"time"

	ca "github.com/patrickmn/go-cache"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type entry struct {
	mu  sync.Mutex
	job model.Job
}

// MemoryRegistry keeps jobs in process. Expired jobs are invisible to Get
// immediately and are removed from memory by Sweep.
type MemoryRegistry struct {
	ttl time.Duration
	c   *ca.Cache
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	// no janitor: the server runs Sweep on its own ticker
	return &MemoryRegistry{ttl: ttl, c: ca.New(ttl, 0)}
}

func (r *MemoryRegistry) Create(_ context.Context, job model.Job) error {
	remaining := r.ttl - time.Since(job.StartTime)
	if remaining <= 0 {
		remaining = time.Nanosecond
	}
	return r.c.Add(job.ID, &entry{job: job.Clone()}, remaining)
}

func (r *MemoryRegistry) lookup(id string) (*entry, error) {
	v, ok := r.c.Get(id)
	if !ok {
		return nil, appErrors.NewJobNotFound(id)
	}
	return v.(*entry), nil
}

func (r *MemoryRegistry) Update(_ context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return e.job.Clone(), nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (model.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.c.Delete(id)
	return nil
}

func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	before := r.c.ItemCount()
	r.c.DeleteExpired()
	return before - r.c.ItemCount(), nil
}
