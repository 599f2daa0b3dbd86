package quota

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

var (
	//go:embed lua/try_reserve.lua
	tryReserveScript string

	//go:embed lua/release.lua
	releaseScript string

	_ Tracker = (*RedisTracker)(nil)
	_ Tracker = (*MemoryTracker)(nil)
)

// keys outlive their day so yesterday's count can still be inspected
const keyTTL = 48 * time.Hour

// RedisTracker keeps one counter key per channel and day, so rollover is a key change.
type RedisTracker struct {
	cmd     redis.Cmdable
	channel string
	limit   int
	now     func() time.Time
}

func NewRedisTracker(cmd redis.Cmdable, channel string, limit int) *RedisTracker {
	return &RedisTracker{cmd: cmd, channel: channel, limit: limit, now: time.Now}
}

func (t *RedisTracker) key(day string) string {
	return fmt.Sprintf("quota:%s:%s", t.channel, day)
}

func (t *RedisTracker) Peek(ctx context.Context) (int, error) {
	return t.count(ctx, today(t.now))
}

func (t *RedisTracker) count(ctx context.Context, day string) (int, error) {
	n, err := t.cmd.Get(ctx, t.key(day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, appErrors.Wrap(err, "read quota counter")
	}
	return n, nil
}

func (t *RedisTracker) Reserve(ctx context.Context, n int) (Admission, error) {
	current, err := t.Peek(ctx)
	if err != nil {
		return Admission{}, err
	}
	return Admission{Allowed: current+n <= t.limit, Remaining: max(t.limit-current, 0)}, nil
}

func (t *RedisTracker) Commit(ctx context.Context, n int) error {
	key := t.key(today(t.now))
	_, err := t.cmd.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.IncrBy(ctx, key, int64(n))
		p.Expire(ctx, key, keyTTL)
		return nil
	})
	return appErrors.Wrap(err, "commit quota")
}

func (t *RedisTracker) TryReserve(ctx context.Context, n int) (Reservation, error) {
	day := today(t.now)
	res, err := t.cmd.Eval(ctx, tryReserveScript,
		[]string{t.key(day)},
		n,
		t.limit,
		int(keyTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return Reservation{}, appErrors.Wrap(err, "reserve quota")
	}
	if len(res) != 2 {
		return Reservation{}, errors.Newf("reserve quota: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		return Reservation{}, appErrors.QuotaExceeded(n, max(t.limit-int(res[1]), 0))
	}
	return Reservation{Day: day, N: n}, nil
}

func (t *RedisTracker) Release(ctx context.Context, res Reservation, n int) error {
	n = min(n, res.N)
	if n <= 0 || res.Day != today(t.now) {
		return nil
	}
	err := t.cmd.Eval(ctx, releaseScript, []string{t.key(res.Day)}, n).Err()
	return appErrors.Wrap(err, "release quota")
}

func (t *RedisTracker) State(ctx context.Context) (State, error) {
	day := today(t.now)
	n, err := t.count(ctx, day)
	if err != nil {
		return State{}, err
	}
	return State{Date: day, Count: n, MaxDailyLimit: t.limit}, nil
}
