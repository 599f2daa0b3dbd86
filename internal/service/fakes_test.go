package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
)

// fakeRecipients implements repository.RecipientRepositoryInterface
type fakeRecipients struct {
	byChannel map[model.Channel][]model.Recipient
	err       error
}

func (f *fakeRecipients) ListOptedIn(_ context.Context, ch model.Channel) ([]model.Recipient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byChannel[ch], nil
}

// fakeProvider replays scripted errors per address; an exhausted script means success.
type fakeProvider struct {
	mu      sync.Mutex
	script  map[string][]error
	calls   map[string]int
	order   []string
	onSend  func(ctx context.Context, address string) error
	subject string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{script: map[string][]error{}, calls: map[string]int{}}
}

func (p *fakeProvider) Send(ctx context.Context, address, subject, body string) error {
	p.mu.Lock()
	p.calls[address]++
	p.order = append(p.order, address)
	p.subject = subject
	var err error
	if s := p.script[address]; len(s) > 0 {
		err, p.script[address] = s[0], s[1:]
	}
	hook := p.onSend
	p.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, address); herr != nil {
			return herr
		}
	}
	return err
}

func (p *fakeProvider) Calls(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[address]
}

type fakeTimeline struct {
	mu     sync.Mutex
	events []model.TimelineEvent
	err    error
}

func (f *fakeTimeline) RecordEvent(_ context.Context, recipientID int, ev model.TimelineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ev.RecipientID = recipientID
	f.events = append(f.events, ev)
	return nil
}

// sleeper records requested pauses without waiting.
type sleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.slept {
		if x == d {
			n++
		}
	}
	return n
}

var testEngineConfig = EngineConfig{
	SendDelay:         1200 * time.Millisecond,
	BatchSize:         20,
	BatchPause:        5 * time.Second,
	MaxRetries:        2,
	RetryBaseDelay:    3 * time.Second,
	RateLimitCooldown: 12 * time.Second,
	ErrorWindow:       10,
}

func newTestEngine(cfg EngineConfig, tl TimelineSink) (*Engine, *sleeper) {
	e := NewEngine(cfg, tl, zerolog.Nop())
	s := &sleeper{}
	e.sleep = s.Sleep
	return e, s
}

func transient(code string) error {
	return &provider.TransportError{Message: "transient failure", Code: code}
}

func permanent() error {
	return &provider.TransportError{Message: "invalid destination", Code: "21211", Status: 400}
}

func rateLimitedErr() error {
	return &provider.TransportError{Message: "Too Many Requests", Code: "20429", Status: 429}
}

var errBoom = errors.New("boom")

// snapshots collects every reported job.
type snapshots struct {
	mu   sync.Mutex
	jobs []model.Job
}

func (s *snapshots) Report(j model.Job) {
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
}

func (s *snapshots) All() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Job(nil), s.jobs...)
}
