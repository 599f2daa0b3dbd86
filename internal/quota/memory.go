package quota

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

type MemoryTracker struct {
	mu    sync.Mutex
	now   func() time.Time
	limit int
	date  string
	count int
}

func NewMemoryTracker(limit int) *MemoryTracker {
	return NewMemoryTrackerWithClock(limit, time.Now)
}

func NewMemoryTrackerWithClock(limit int, now func() time.Time) *MemoryTracker {
	return &MemoryTracker{now: now, limit: limit, date: today(now)}
}

// rollover must be called with mu held.
func (t *MemoryTracker) rollover() {
	if d := today(t.now); d != t.date {
		t.date = d
		t.count = 0
	}
}

func (t *MemoryTracker) Peek(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.count, nil
}

func (t *MemoryTracker) Reserve(_ context.Context, n int) (Admission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	remaining := t.limit - t.count
	return Admission{Allowed: t.count+n <= t.limit, Remaining: max(remaining, 0)}, nil
}

func (t *MemoryTracker) Commit(_ context.Context, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.count += n
	return nil
}

func (t *MemoryTracker) TryReserve(_ context.Context, n int) (Reservation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.count+n > t.limit {
		return Reservation{}, appErrors.QuotaExceeded(n, max(t.limit-t.count, 0))
	}
	t.count += n
	return Reservation{Day: t.date, N: n}, nil
}

func (t *MemoryTracker) Release(_ context.Context, res Reservation, n int) error {
	if n <= 0 {
		return nil
	}
	n = min(n, res.N)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if res.Day != t.date {
		return nil
	}
	t.count = max(t.count-n, 0)
	return nil
}

func (t *MemoryTracker) State(_ context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return State{Date: t.date, Count: t.count, MaxDailyLimit: t.limit}, nil
}
