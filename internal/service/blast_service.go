// internal/service/blast_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/jobs"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/quota"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/validator"
)

const (
	defaultEmailSubject = "Notification"
	summaryErrorLimit   = 10
)

// ChannelSetup is the provider and quota of one channel. A nil Provider
// means the channel is not configured.
type ChannelSetup struct {
	Provider provider.Adapter
	Quota    quota.Tracker
}

// BlastService is the entry point for blasts: admission, sync and async runs, progress, cancellation.
type BlastService struct {
	recipients  repository.RecipientRepositoryInterface
	registry    jobs.Registry
	engine      *Engine
	channels    map[model.Channel]ChannelSetup
	countryCode string
	log         zerolog.Logger
	newID       func() string
	now         func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewBlastService(
	recipients repository.RecipientRepositoryInterface,
	registry jobs.Registry,
	engine *Engine,
	channels map[model.Channel]ChannelSetup,
	countryCode string,
	log zerolog.Logger,
) *BlastService {
	return &BlastService{
		recipients:  recipients,
		registry:    registry,
		engine:      engine,
		channels:    channels,
		countryCode: countryCode,
		log:         log.With().Str("component", "blast_service").Logger(),
		newID:       uuid.NewString,
		now:         time.Now,
		running:     make(map[string]context.CancelFunc),
	}
}

// admission is an admitted blast together with the quota units held for it.
type admission struct {
	blast       Blast
	tracker     quota.Tracker
	reservation quota.Reservation
}

func (s *BlastService) admit(ctx context.Context, ch model.Channel, subject, body, user string) (*admission, error) {
	if strings.TrimSpace(body) == "" {
		return nil, appErrors.ErrEmptyMessage
	}
	if !ch.Valid() {
		return nil, appErrors.ErrInvalidChannel
	}
	setup, ok := s.channels[ch]
	if !ok || setup.Provider == nil || setup.Quota == nil {
		return nil, appErrors.ErrProviderUnconfigured
	}
	if ch == model.ChannelEmail && strings.TrimSpace(subject) == "" {
		subject = defaultEmailSubject
	}
	if user == "" {
		user = "system"
	}

	recipients, err := s.recipients.ListOptedIn(ctx, ch)
	if err != nil {
		return nil, appErrors.Wrap(err, "resolve recipients")
	}

	b := Blast{Channel: ch, Subject: subject, Body: body, User: user, Provider: setup.Provider}
	for _, rc := range recipients {
		if addr, ok := s.normalize(ch, rc); ok {
			b.Targets = append(b.Targets, Target{Recipient: rc, Address: addr})
		} else {
			b.Rejected = append(b.Rejected, Rejection{
				Recipient: rc,
				Reason:    fmt.Sprintf("%s: invalid %s address %q", displayName(rc), addressKind(ch), rc.Address(ch)),
			})
		}
	}
	if len(b.Targets) == 0 {
		return nil, appErrors.ErrNoRecipients
	}

	if words := validator.ScanForbiddenWords(subject + " " + body); len(words) > 0 {
		s.log.Warn().Str("channel", ch.String()).Strs("words", words).Msg("message contains spam trigger words")
	}

	res, err := setup.Quota.TryReserve(ctx, len(b.Targets))
	if err != nil {
		return nil, err
	}
	return &admission{blast: b, tracker: setup.Quota, reservation: res}, nil
}

func (s *BlastService) normalize(ch model.Channel, rc model.Recipient) (string, bool) {
	if ch == model.ChannelEmail {
		addr := strings.TrimSpace(rc.Email)
		return addr, validator.IsValidEmail(addr)
	}
	addr := validator.NormalizePhone(rc.Phone, s.countryCode)
	return addr, addr != ""
}

func addressKind(ch model.Channel) string {
	if ch == model.ChannelEmail {
		return "email"
	}
	return "phone"
}

// release gives back the units reserved for recipients that were not sent.
func (s *BlastService) release(a *admission, sent int) {
	unused := a.reservation.N - sent
	if unused <= 0 {
		return
	}
	if err := a.tracker.Release(context.Background(), a.reservation, unused); err != nil {
		s.log.Error().Err(err).Str("channel", a.blast.Channel.String()).Int("units", unused).Msg("failed to release quota")
	}
}

// StartSyncBlast runs the whole blast inside the call and returns its summary. No job is recorded.
func (s *BlastService) StartSyncBlast(ctx context.Context, ch model.Channel, subject, body, user string) (model.Summary, error) {
	a, err := s.admit(ctx, ch, subject, body, user)
	if err != nil {
		return model.Summary{}, err
	}

	final := s.engine.Run(ctx, a.blast, model.Job{Channel: ch, StartTime: s.now()}, nil)
	s.release(a, final.Sent)

	return model.Summary{
		Success: final.Status == model.JobCompleted,
		Total:   final.Total,
		Sent:    final.Sent,
		Failed:  final.Failed,
		Errors:  tail(final.Errors, summaryErrorLimit),
	}, nil
}

// StartAsyncBlast admits the blast, records a job and sends in the background.
// The returned id can be polled with GetJobProgress.
func (s *BlastService) StartAsyncBlast(ctx context.Context, ch model.Channel, subject, body, user string) (string, error) {
	a, err := s.admit(ctx, ch, subject, body, user)
	if err != nil {
		return "", err
	}

	job := model.Job{
		ID:        s.newID(),
		Channel:   ch,
		Total:     a.blast.Total(),
		Status:    model.JobStarting,
		StartTime: s.now(),
		Errors:    []string{},
	}
	if err := s.registry.Create(ctx, job); err != nil {
		s.release(a, 0)
		return "", appErrors.Wrap(err, "create job")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, job.ID)
			s.mu.Unlock()
			cancel()
		}()

		final := s.engine.Run(runCtx, a.blast, job, s.reporter(job.ID))
		s.release(a, final.Sent)
	}()

	s.log.Info().Str("job", job.ID).Str("channel", ch.String()).Int("total", job.Total).Msg("async blast queued")
	return job.ID, nil
}

// reporter writes engine snapshots to the registry. Writes survive cancellation
// of the blast so the terminal state is always stored.
func (s *BlastService) reporter(id string) Reporter {
	return func(snap model.Job) {
		_, err := s.registry.Update(context.Background(), id, func(j *model.Job) {
			*j = snap
		})
		if err != nil {
			s.log.Warn().Err(err).Str("job", id).Msg("failed to store job progress")
		}
	}
}

func (s *BlastService) GetJobProgress(ctx context.Context, id string) (model.Job, error) {
	return s.registry.Get(ctx, id)
}

// CancelJob stops a running async blast between recipients.
func (s *BlastService) CancelJob(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
		s.log.Info().Str("job", id).Msg("cancellation requested")
		return nil
	}

	if _, err := s.registry.Get(ctx, id); err != nil {
		return err
	}
	return appErrors.ErrJobFinished
}

// QuotaStatus reports today's counter of every configured channel.
func (s *BlastService) QuotaStatus(ctx context.Context) (map[model.Channel]quota.State, error) {
	out := make(map[model.Channel]quota.State, len(s.channels))
	for ch, setup := range s.channels {
		if setup.Quota == nil {
			continue
		}
		st, err := setup.Quota.State(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, "quota state "+ch.String())
		}
		out[ch] = st
	}
	return out, nil
}

// SweepJobs drops expired job records.
func (s *BlastService) SweepJobs(ctx context.Context) {
	n, err := s.registry.Sweep(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("job sweep failed")
		return
	}
	if n > 0 {
		s.log.Debug().Int("removed", n).Msg("expired jobs swept")
	}
}

// RunSweeper calls SweepJobs every interval until ctx ends.
func (s *BlastService) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepJobs(ctx)
		}
	}
}

// CancelAll stops every running async blast.
func (s *BlastService) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.running {
		cancel()
	}
}

// Wait blocks until every background blast has returned.
func (s *BlastService) Wait() {
	s.wg.Wait()
}

// Shutdown waits for background blasts until ctx ends, then cancels the rest and waits for them to stop.
func (s *BlastService) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("shutdown timeout, cancelling running blasts")
		s.CancelAll()
		<-done
	}
}
