package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
)

// MockTimelineRepo stores events in memory
type MockTimelineRepo struct {
	mu     sync.Mutex
	events []model.TimelineEvent
}

func (m *MockTimelineRepo) Insert(_ context.Context, ev *model.TimelineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = len(m.events) + 1
	m.events = append(m.events, *ev)
	return nil
}

func (m *MockTimelineRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestServe_StoresEventsUntilCancelled(t *testing.T) {
	q := queue.NewInMemoryQueue(1, time.Millisecond, zerolog.Nop())
	defer q.Close()
	repo := &MockTimelineRepo{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, q, "timeline_test", repo, zerolog.Nop()) }()

	pub := queue.NewTimelinePublisher(q, "timeline_test")
	require.Eventually(t, func() bool {
		return pub.RecordEvent(context.Background(), 7, model.TimelineEvent{Type: "sms_blast", User: "ops"}) == nil
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Equal(t, 7, repo.events[0].RecipientID)
}

func TestServe_NilQueue(t *testing.T) {
	err := serve(context.Background(), nil, "x", &MockTimelineRepo{}, zerolog.Nop())
	assert.Error(t, err)
}
