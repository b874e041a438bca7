package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/provcal/appointment-api/internal/config"
	appointmentHandler "github.com/provcal/appointment-api/internal/handler/appointment"
	healthHandler "github.com/provcal/appointment-api/internal/handler/health"
	"github.com/provcal/appointment-api/internal/middleware"
	"github.com/provcal/appointment-api/internal/repository/postgres"
	"github.com/provcal/appointment-api/internal/router"
	appointmentService "github.com/provcal/appointment-api/internal/service/appointment"
	eventService "github.com/provcal/appointment-api/internal/service/event"
	"github.com/provcal/appointment-api/pkg/logger"
	"github.com/provcal/appointment-api/pkg/messaging/redis"
	"github.com/provcal/appointment-api/pkg/metrics"
	"github.com/provcal/appointment-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(cfg.Database, cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	eventSvc := eventService.NewService(outboxRepo)
	appointmentSvc := appointmentService.NewService(appointmentRepo, eventSvc)

	m := metrics.NewMetrics(cfg.Metrics.Namespace, "api")

	r := router.NewRouter(router.RouterConfig{
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		RateBurst:         cfg.RateLimit.Burst,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CacheTTL:          cfg.Cache.AvailabilityTTL,
		CORSConfig:        middleware.DefaultCORSConfig(),
		MetricsPrefix:     cfg.Metrics.Namespace,
		MetricsPath:       cfg.Metrics.Path,
	},
		appointmentHandler.NewHandler(appointmentSvc, m),
		healthHandler.NewHandler(db),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Outbox publishing rides in-process with the API. cmd/worker runs the
	// same loop standalone when publishing is scaled out.
	processorCtx, stopProcessor := context.WithCancel(context.Background())
	defer stopProcessor()

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		RetentionAge:  cfg.Outbox.RetentionAge,
	}, logger.NewLogger(nil), m)
	go processor.Start(processorCtx)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
