package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

const TimelineTopic = "case_timeline"

// TimelinePublisher records case-timeline events by publishing them on a queue.
type TimelinePublisher struct {
	q     Queue
	topic string
	now   func() time.Time
}

func NewTimelinePublisher(q Queue, topic string) *TimelinePublisher {
	if topic == "" {
		topic = TimelineTopic
	}
	return &TimelinePublisher{q: q, topic: topic, now: time.Now}
}

func (p *TimelinePublisher) RecordEvent(ctx context.Context, recipientID int, ev model.TimelineEvent) error {
	ev.RecipientID = recipientID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = p.now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, p.topic, payload)
}

// StartTimelineSubscriber persists every event published on topic.
func StartTimelineSubscriber(q Queue, topic string, repo repository.TimelineRepositoryInterface, log zerolog.Logger) error {
	if topic == "" {
		topic = TimelineTopic
	}
	return q.Subscribe(topic, func(ctx context.Context, payload []byte) error {
		var ev model.TimelineEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Warn().Err(err).Msg("invalid timeline payload, dropping")
			return nil // no retry
		}
		if err := repo.Insert(ctx, &ev); err != nil {
			log.Warn().Err(err).Int("recipient", ev.RecipientID).Msg("failed to store timeline event")
			return err // retry
		}
		log.Debug().Int("recipient", ev.RecipientID).Int("event_id", ev.ID).Msg("timeline event stored")
		return nil
	})
}
