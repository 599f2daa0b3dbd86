package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
)

func TestInMemoryQueue_NoSubscribers(t *testing.T) {
	q := NewInMemoryQueue(1, time.Millisecond, zerolog.Nop())
	err := q.Publish(context.Background(), "nobody", []byte("x"))
	assert.Error(t, err)
}

func TestInMemoryQueue_RetriesThenSucceeds(t *testing.T) {
	q := NewInMemoryQueue(3, time.Millisecond, zerolog.Nop())

	var calls int32
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("db down")
		}
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), "t", []byte("x")))
	require.NoError(t, q.Close())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestInMemoryQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := NewInMemoryQueue(2, time.Millisecond, zerolog.Nop())

	var calls int32
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	}))

	require.NoError(t, q.Publish(context.Background(), "t", []byte("x")))
	require.NoError(t, q.Close())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

type fakeRepo struct {
	mu     sync.Mutex
	events []model.TimelineEvent
	fail   int
}

func (r *fakeRepo) Insert(ctx context.Context, ev *model.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("insert failed")
	}
	ev.ID = len(r.events) + 1
	r.events = append(r.events, *ev)
	return nil
}

func TestTimeline_PublishAndPersist(t *testing.T) {
	q := NewInMemoryQueue(2, time.Millisecond, zerolog.Nop())
	repo := &fakeRepo{fail: 1}
	require.NoError(t, StartTimelineSubscriber(q, "", repo, zerolog.Nop()))

	pub := NewTimelinePublisher(q, "")
	err := pub.RecordEvent(context.Background(), 9, model.TimelineEvent{
		Type:        "email_blast",
		Description: "Bulk email sent: Winter clinic",
		User:        "jdoe",
	})
	require.NoError(t, err)
	require.NoError(t, q.Close())

	require.Len(t, repo.events, 1)
	assert.Equal(t, 9, repo.events[0].RecipientID)
	assert.Equal(t, "jdoe", repo.events[0].User)
	assert.False(t, repo.events[0].CreatedAt.IsZero())
}

func TestTimeline_InvalidPayloadIsDropped(t *testing.T) {
	q := NewInMemoryQueue(2, time.Millisecond, zerolog.Nop())
	repo := &fakeRepo{}
	require.NoError(t, StartTimelineSubscriber(q, "", repo, zerolog.Nop()))

	require.NoError(t, q.Publish(context.Background(), TimelineTopic, []byte("{not json")))
	require.NoError(t, q.Close())
	assert.Empty(t, repo.events)
}

// fakeChannel stands in for *amqp.Channel.
type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	deliveries chan amqp.Delivery
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	close(c.deliveries)
	return nil
}

type ackRecorder struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
	done    chan struct{}
}

func newAckRecorder() *ackRecorder { return &ackRecorder{done: make(chan struct{}, 8)} }

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acks++
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	a.nacks++
	a.requeue = requeue
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func waitAck(t *testing.T, a *ackRecorder) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("delivery was never acknowledged")
	}
}

func TestAMQPQueue_PublishIsPersistent(t *testing.T) {
	ch := newFakeChannel()
	q := newAMQPQueue(ch, 3, zerolog.Nop())

	require.NoError(t, q.Publish(context.Background(), "case_timeline", []byte(`{"type":"sms_blast"}`)))
	require.NoError(t, q.Publish(context.Background(), "case_timeline", []byte(`{}`)))

	assert.Equal(t, []string{"case_timeline"}, ch.declared, "queue declared once")
	require.Len(t, ch.published, 2)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, 0, retryCount(ch.published[0].Headers))
}

func TestAMQPQueue_FailedDeliveryIsRepublished(t *testing.T) {
	ch := newFakeChannel()
	q := newAMQPQueue(ch, 2, zerolog.Nop())

	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		return errors.New("db down")
	}))

	ack := newAckRecorder()
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte("x"), Headers: amqp.Table{retryHeader: int32(1)}}
	waitAck(t, ack)

	ch.mu.Lock()
	require.Len(t, ch.published, 1)
	assert.Equal(t, 2, retryCount(ch.published[0].Headers))
	ch.mu.Unlock()
	assert.Equal(t, 1, ack.acks)

	require.NoError(t, q.Close())
}

func TestAMQPQueue_DropsAfterMaxRetries(t *testing.T) {
	ch := newFakeChannel()
	q := newAMQPQueue(ch, 2, zerolog.Nop())

	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		return errors.New("db down")
	}))

	ack := newAckRecorder()
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte("x"), Headers: amqp.Table{retryHeader: int64(2)}}
	waitAck(t, ack)

	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
	assert.Empty(t, ch.published)
	require.NoError(t, q.Close())
}

func TestAMQPQueue_TimelineRoundTrip(t *testing.T) {
	ch := newFakeChannel()
	q := newAMQPQueue(ch, 2, zerolog.Nop())
	repo := &fakeRepo{}
	require.NoError(t, StartTimelineSubscriber(q, "case_timeline", repo, zerolog.Nop()))

	body, _ := json.Marshal(model.TimelineEvent{RecipientID: 3, Type: "sms_blast", User: "system"})
	ack := newAckRecorder()
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, Body: body}
	waitAck(t, ack)

	require.NoError(t, q.Close())
	require.Len(t, repo.events, 1)
	assert.Equal(t, 3, repo.events[0].RecipientID)
}
