// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/jobs"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	// Load .env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Log)
	if envErr != nil {
		log.Debug().Msg("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			log.Error().Err(cerr).Msg("errors while closing resources")
		}
	}()

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	closers = append(closers, conn.Close)

	rdb, err := db.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		closers = append(closers, rdb.Close)
	}

	q, err := newQueue(cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, q.Close)

	// without a broker, the server persists timeline events itself
	if !cfg.AMQP.Enabled() {
		timelineRepo := &repository.TimelineRepository{DB: conn}
		if err := queue.StartTimelineSubscriber(q, cfg.AMQP.TimelineQueue, timelineRepo, log); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	channels, err := buildChannels(cfg, rdb, reg, log)
	if err != nil {
		return err
	}

	var registry jobs.Registry = jobs.NewMemoryRegistry(cfg.Dispatch.JobTTL)
	if rdb != nil {
		registry = jobs.NewRedisRegistry(rdb, cfg.Dispatch.JobTTL)
	}

	engine := service.NewEngine(
		service.EngineConfigFrom(cfg.Dispatch),
		queue.NewTimelinePublisher(q, cfg.AMQP.TimelineQueue),
		log,
	)
	blasts := service.NewBlastService(
		&repository.RecipientRepository{DB: conn},
		registry,
		engine,
		channels,
		cfg.Dispatch.DefaultCountryCode,
		log,
	)

	router := controller.NewRouter(
		&controller.BlastController{Service: blasts, Log: log},
		&handler.JobHandler{Service: blasts, Log: log},
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log,
	)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Address).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return blasts.RunSweeper(gctx, cfg.Dispatch.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		herr := srv.Shutdown(shutdownCtx)
		blasts.Shutdown(shutdownCtx)
		return herr
	})
	return g.Wait()
}

func newQueue(cfg config.Config, log zerolog.Logger) (queue.Queue, error) {
	if cfg.AMQP.Enabled() {
		return queue.DialAMQP(cfg.AMQP.URL, cfg.AMQP.MaxRetries, log)
	}
	return queue.NewInMemoryQueue(cfg.AMQP.MaxRetries, cfg.Dispatch.RetryBaseDelay, log), nil
}
