package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

var (
	_ Registry = (*MemoryRegistry)(nil)
	_ Registry = (*RedisRegistry)(nil)
)

// RedisRegistry stores each job as JSON under job:<id>. The key expiry is set
// once at creation; updates keep it, so Redis does the eviction.
type RedisRegistry struct {
	cmd redis.Cmdable
	ttl time.Duration
	// serializes read-modify-write within this process
	mu sync.Mutex
}

func NewRedisRegistry(cmd redis.Cmdable, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{cmd: cmd, ttl: ttl}
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (r *RedisRegistry) Create(ctx context.Context, job model.Job) error {
	remaining := r.ttl - time.Since(job.StartTime)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := r.cmd.SetNX(ctx, jobKey(job.ID), raw, remaining).Result()
	if err != nil {
		return appErrors.Wrap(err, "create job")
	}
	if !ok {
		return errors.Newf("job %s already exists", job.ID)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (model.Job, error) {
	raw, err := r.cmd.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return model.Job{}, appErrors.NewJobNotFound(id)
	}
	if err != nil {
		return model.Job{}, appErrors.Wrap(err, "get job")
	}
	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return model.Job{}, appErrors.Wrap(err, "decode job")
	}
	return job, nil
}

func (r *RedisRegistry) Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.Get(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	fn(&job)
	raw, err := json.Marshal(job)
	if err != nil {
		return model.Job{}, err
	}
	// XX: an expired job is not resurrected by a late update
	ok, err := r.cmd.SetArgs(ctx, jobKey(id), raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if err == redis.Nil || (err == nil && ok != "OK") {
		return model.Job{}, appErrors.NewJobNotFound(id)
	}
	if err != nil {
		return model.Job{}, appErrors.Wrap(err, "update job")
	}
	return job, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	return appErrors.Wrap(r.cmd.Del(ctx, jobKey(id)).Err(), "delete job")
}

// Sweep is a no-op: Redis expires the keys.
func (r *RedisRegistry) Sweep(_ context.Context) (int, error) {
	return 0, nil
}
