// internal/service/dispatch_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/retry"
)

// TimelineSink records a case-timeline entry for a recipient. Best effort.
type TimelineSink interface {
	RecordEvent(ctx context.Context, recipientID int, ev model.TimelineEvent) error
}

type EngineConfig struct {
	SendDelay         time.Duration
	BatchSize         int
	BatchPause        time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RateLimitCooldown time.Duration
	ErrorWindow       int
}

func EngineConfigFrom(c config.DispatchConfig) EngineConfig {
	return EngineConfig{
		SendDelay:         c.SendDelay,
		BatchSize:         c.BatchSize,
		BatchPause:        c.BatchPause,
		MaxRetries:        c.MaxRetries,
		RetryBaseDelay:    c.RetryBaseDelay,
		RateLimitCooldown: c.RateLimitCooldown,
		ErrorWindow:       c.ErrorWindow,
	}
}

// Target is a recipient whose address passed validation.
type Target struct {
	Recipient model.Recipient
	Address   string
}

// Rejection is a recipient dropped by validation. It counts as a failure without any send attempt.
type Rejection struct {
	Recipient model.Recipient
	Reason    string
}

// Blast is one admitted bulk send.
type Blast struct {
	Channel  model.Channel
	Subject  string
	Body     string
	User     string
	Provider provider.Adapter
	Targets  []Target
	Rejected []Rejection
}

// Total is every recipient of the blast, rejected ones included.
func (b Blast) Total() int { return len(b.Targets) + len(b.Rejected) }

// Reporter receives a snapshot of the job after every change.
type Reporter func(snapshot model.Job)

// Engine sends a blast sequentially: batches, pacing, retries and cooldowns.
type Engine struct {
	cfg      EngineConfig
	timeline TimelineSink
	log      zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func NewEngine(cfg EngineConfig, timeline TimelineSink, log zerolog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 10
	}
	return &Engine{
		cfg:      cfg,
		timeline: timeline,
		log:      log.With().Str("component", "dispatch_engine").Logger(),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run holds the state of one Run call.
type run struct {
	job    model.Job
	errs   []string
	window int
	report Reporter
	log    zerolog.Logger
	blast  Blast
}

// publish reports the job. While running only the most recent errors are
// visible; a terminal job carries the full list.
func (r *run) publish() {
	snap := r.job.Clone()
	if snap.Status.Terminal() {
		snap.Errors = append([]string{}, r.errs...)
	} else {
		snap.Errors = append([]string{}, tail(r.errs, r.window)...)
	}
	r.job.Errors = snap.Errors
	if r.report != nil {
		r.report(snap.Clone())
	}
}

func (r *run) fail(msg string) {
	r.job.Failed++
	r.job.Current = r.job.Sent + r.job.Failed
	r.errs = append(r.errs, msg)
}

func (r *run) succeed() {
	r.job.Sent++
	r.job.Current = r.job.Sent + r.job.Failed
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Run executes the blast and returns the terminal job. job carries the id and
// start time; its counters are overwritten. report may be nil.
func (e *Engine) Run(ctx context.Context, b Blast, job model.Job, report Reporter) (final model.Job) {
	r := &run{
		job:    job,
		window: e.cfg.ErrorWindow,
		report: report,
		blast:  b,
		log: e.log.With().
			Str("job", job.ID).
			Str("channel", b.Channel.String()).
			Logger(),
	}
	r.job.Total = b.Total()
	r.job.Sent, r.job.Failed, r.job.Current = 0, 0, 0

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("blast aborted")
			r.job.Error = fmt.Sprintf("blast aborted: %v", rec)
			final = e.finish(r, model.JobError)
		}
	}()

	r.job.Status = model.JobSending
	r.log.Info().Int("total", r.job.Total).Int("rejected", len(b.Rejected)).Msg("blast started")

	for _, rej := range b.Rejected {
		r.fail(rej.Reason)
		r.log.Warn().Int("recipient", rej.Recipient.ID).Str("reason", rej.Reason).Msg("recipient skipped")
	}
	r.publish()

	if err := e.sendAll(ctx, r); err != nil {
		r.log.Warn().Err(err).Int("sent", r.job.Sent).Int("failed", r.job.Failed).Msg("blast cancelled")
		return e.finish(r, model.JobCancelled)
	}
	return e.finish(r, model.JobCompleted)
}

func (e *Engine) finish(r *run, status model.JobStatus) model.Job {
	end := e.now()
	r.job.Status = status
	r.job.EndTime = &end
	r.publish()
	r.log.Info().
		Str("status", string(status)).
		Int("sent", r.job.Sent).
		Int("failed", r.job.Failed).
		Dur("elapsed", end.Sub(r.job.StartTime)).
		Msg("blast finished")
	return r.job.Clone()
}

// sendAll returns a non-nil error only when ctx ends the blast early.
func (e *Engine) sendAll(ctx context.Context, r *run) error {
	batches := chunk(r.blast.Targets, e.cfg.BatchSize)
	for bi, batch := range batches {
		batchFailed := 0
		for i, t := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			disp, err := e.deliver(ctx, r, t)
			if err != nil && ctx.Err() != nil {
				// interrupted mid-attempt: the recipient is neither sent nor failed
				return ctx.Err()
			}

			if err == nil {
				r.succeed()
				e.recordTimeline(ctx, r, t)
			} else {
				batchFailed++
				r.fail(fmt.Sprintf("%s <%s>: %v", displayName(t.Recipient), t.Address, err))
				r.log.Error().
					Err(err).
					Str("code", errorCode(err)).
					Int("recipient", t.Recipient.ID).
					Bool("rate_limited", disp.RateLimited).
					Msg("send failed")
			}
			r.publish()

			if err != nil && disp.RateLimited {
				if float64(batchFailed) > 0.1*float64(i+1) {
					r.log.Warn().
						Int("batch", bi+1).
						Int("failed", batchFailed).
						Int("attempted", i+1).
						Msg("high failure rate in batch")
				}
				if err := e.sleep(ctx, e.cfg.RateLimitCooldown); err != nil {
					return err
				}
			}

			if i < len(batch)-1 {
				if err := e.sleep(ctx, e.cfg.SendDelay); err != nil {
					return err
				}
			}
		}

		if bi < len(batches)-1 {
			r.log.Debug().Int("batch", bi+1).Int("batches", len(batches)).Msg("batch done, pausing")
			if err := e.sleep(ctx, e.cfg.BatchPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliver sends to one target, retrying transient failures up to MaxRetries times.
func (e *Engine) deliver(ctx context.Context, r *run, t Target) (retry.Disposition, error) {
	for attempt := 1; ; attempt++ {
		err := r.blast.Provider.Send(ctx, t.Address, r.blast.Subject, r.blast.Body)
		if err == nil {
			return retry.Disposition{}, nil
		}
		disp := retry.Classify(err)
		if !disp.Retryable || attempt > e.cfg.MaxRetries || ctx.Err() != nil {
			return disp, err
		}
		r.log.Warn().
			Err(err).
			Str("code", errorCode(err)).
			Int("recipient", t.Recipient.ID).
			Int("attempt", attempt).
			Msg("send failed, retrying")
		if serr := e.sleep(ctx, e.cfg.RetryBaseDelay*time.Duration(attempt)); serr != nil {
			return retry.Disposition{}, serr
		}
	}
}

func (e *Engine) recordTimeline(ctx context.Context, r *run, t Target) {
	if e.timeline == nil {
		return
	}
	ev := model.TimelineEvent{
		Type:        r.blast.Channel.String() + "_blast",
		Description: timelineDescription(r.blast),
		User:        r.blast.User,
		CreatedAt:   e.now(),
	}
	if err := e.timeline.RecordEvent(ctx, t.Recipient.ID, ev); err != nil {
		r.log.Warn().Err(err).Int("recipient", t.Recipient.ID).Msg("failed to record timeline event")
	}
}

func timelineDescription(b Blast) string {
	if b.Channel == model.ChannelEmail {
		return "Bulk email sent: " + b.Subject
	}
	body := []rune(b.Body)
	if len(body) > 100 {
		return "Bulk SMS sent: " + string(body[:100]) + "..."
	}
	return "Bulk SMS sent: " + b.Body
}

func displayName(rc model.Recipient) string {
	if strings.TrimSpace(rc.Name) != "" {
		return rc.Name
	}
	return fmt.Sprintf("recipient %d", rc.ID)
}

func errorCode(err error) string {
	var te *provider.TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func chunk(targets []Target, size int) [][]Target {
	var out [][]Target
	for start := 0; start < len(targets); start += size {
		end := min(start+size, len(targets))
		out = append(out, targets[start:end])
	}
	return out
}
