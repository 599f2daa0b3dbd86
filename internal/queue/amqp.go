// internal/queue/amqp.go
package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

const retryHeader = "x-retry-count"

// channel is the part of *amqp.Channel the queue uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPQueue maps topics to durable RabbitMQ queues on the default exchange.
// Failed deliveries are republished with an incremented x-retry-count header
// and dropped after maxRetries.
type AMQPQueue struct {
	conn       *amqp.Connection
	ch         channel
	mu         sync.Mutex
	declared   map[string]bool
	maxRetries int
	log        zerolog.Logger
	wg         sync.WaitGroup
}

func DialAMQP(url string, maxRetries int, log zerolog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, appErrors.Wrap(err, "connect to RabbitMQ")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, appErrors.Wrap(err, "open RabbitMQ channel")
	}
	q := newAMQPQueue(ch, maxRetries, log)
	q.conn = conn
	return q, nil
}

func newAMQPQueue(ch channel, maxRetries int, log zerolog.Logger) *AMQPQueue {
	return &AMQPQueue{
		ch:         ch,
		declared:   make(map[string]bool),
		maxRetries: maxRetries,
		log:        log.With().Str("component", "amqp_queue").Logger(),
	}
}

// declare must be called with mu held.
func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return appErrors.Wrap(err, "declare queue "+topic)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(_ context.Context, topic string, payload []byte) error {
	return q.publish(topic, payload, 0)
}

func (q *AMQPQueue) publish(topic string, payload []byte, retries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.declare(topic); err != nil {
		return err
	}
	err := q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Body:         payload,
	})
	return appErrors.Wrap(err, "publish to "+topic)
}

// Subscribe starts a consumer goroutine for topic. It stops when the channel closes.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return appErrors.Wrap(err, "consume "+topic)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for d := range msgs {
			q.handle(topic, d, handler)
		}
	}()
	return nil
}

func (q *AMQPQueue) handle(topic string, d amqp.Delivery, handler Handler) {
	err := handler(context.Background(), d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries < q.maxRetries {
		if perr := q.publish(topic, d.Body, retries+1); perr != nil {
			q.log.Error().Err(perr).Str("topic", topic).Msg("republish failed")
			_ = d.Nack(false, true)
			return
		}
		q.log.Warn().Err(err).Str("topic", topic).Int("retry", retries+1).Msg("delivery failed, requeued")
		_ = d.Ack(false)
		return
	}

	q.log.Error().Err(err).Str("topic", topic).Int("retries", retries).Msg("delivery permanently failed")
	_ = d.Nack(false, false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	err := q.ch.Close()
	q.mu.Unlock()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	q.wg.Wait()
	return err
}
