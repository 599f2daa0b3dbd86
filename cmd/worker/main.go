// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// The worker drains the timeline queue into case_timeline when the server
// publishes through RabbitMQ.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Log).With().Str("component", "timeline-worker").Logger()

	if !cfg.AMQP.Enabled() {
		log.Fatal().Msg("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.AMQP.URL, cfg.AMQP.MaxRetries, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer q.Close()

	if err := serve(ctx, q, cfg.AMQP.TimelineQueue, &repository.TimelineRepository{DB: conn}, log); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
	}
}

// serve subscribes the timeline store to topic and blocks until ctx is done.
func serve(ctx context.Context, q queue.Queue, topic string, repo repository.TimelineRepositoryInterface, log zerolog.Logger) error {
	if q == nil {
		return errors.New("nil queue")
	}
	if err := queue.StartTimelineSubscriber(q, topic, repo, log); err != nil {
		return err
	}
	log.Info().Str("topic", topic).Msg("worker running, waiting for events")
	<-ctx.Done()
	log.Info().Msg("worker stopping")
	return nil
}
