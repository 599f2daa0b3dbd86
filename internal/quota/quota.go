// internal/quota/quota.go
package quota

import (
	"context"
	"time"
)

const dateLayout = "2006-01-02"

// State is the counter for one day.
type State struct {
	Date          string `json:"date"`
	Count         int    `json:"count"`
	MaxDailyLimit int    `json:"maxDailyLimit"`
}

func (s State) Remaining() int {
	if r := s.MaxDailyLimit - s.Count; r > 0 {
		return r
	}
	return 0
}

// Admission is the answer of a non-mutating Reserve check.
type Admission struct {
	Allowed   bool
	Remaining int
}

// Reservation is a block of units taken by TryReserve. Units are only returned
// to the day they were taken from.
type Reservation struct {
	Day string
	N   int
}

// Tracker counts messages sent today against a daily ceiling. The day rolls over
// lazily: every call compares today's date with the stored one first.
type Tracker interface {
	Peek(ctx context.Context) (int, error)
	Reserve(ctx context.Context, n int) (Admission, error)
	Commit(ctx context.Context, n int) error
	TryReserve(ctx context.Context, n int) (Reservation, error)
	Release(ctx context.Context, res Reservation, n int) error
	State(ctx context.Context) (State, error)
}

func today(now func() time.Time) string {
	return now().Format(dateLayout)
}
