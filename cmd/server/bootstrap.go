package main

import (
	"context"
	"fmt"

	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/internal/engine"
	"github.com/huangang/codecritic/internal/handlers"
	"github.com/huangang/codecritic/internal/middleware"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/internal/services"
	"github.com/huangang/codecritic/internal/store"
	"github.com/huangang/codecritic/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db          *gorm.DB
	registry    *prometheus.Registry
	httpMetrics *middleware.HTTPMetrics
	auth        middleware.TokenAuth
	corsOrigins []string
	events      *services.SSEHub
	taskQueue   services.TaskQueue
	worker      *services.Worker
	sweeper     *services.StaleReviewSweeper

	// dailyLimiter covers every /api route, submitLimiter only POST /api/reviews. Either may be nil.
	dailyLimiter  *middleware.RateLimiter
	submitLimiter *middleware.RateLimiter

	reviewHandler *handlers.ReviewHandler
	statsHandler  *handlers.StatsHandler
	healthHandler *handlers.HealthHandler
	sseHandler    *handlers.SSEHandler
}

// bootstrap initializes all application dependencies: database, engine, queue, workers.
func bootstrap(ctx context.Context, cfg *config.Config) (*appServices, error) {
	db, err := models.OpenDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		_ = models.CloseDB(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	reviewEngine, err := engine.New(ctx, &cfg.AI)
	if err != nil {
		_ = models.CloseDB(db)
		return nil, err
	}
	if !reviewEngine.HasCredentials() {
		logger.Warn().Str("provider", reviewEngine.Provider()).Msg("[Engine] No API key configured, reviews will fail")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewHTTPMetrics("codecritic")
	registry.MustRegister(httpMetrics.Collectors()...)
	metrics := services.NewMetrics(registry)

	reviewStore := store.NewReviewStore(db)
	events := services.NewSSEHub()
	taskQueue := services.NewTaskQueue(cfg)
	reviewService := services.NewReviewService(reviewStore, reviewEngine, taskQueue, events, metrics)

	auth := middleware.TokenAuth{Secret: cfg.Auth.SecretToken, AllowAnonymous: cfg.Auth.AllowAnonymous}

	svc := &appServices{
		db:          db,
		registry:    registry,
		httpMetrics: httpMetrics,
		auth:        auth,
		corsOrigins: cfg.Server.CORSOrigins,
		events:      events,
		taskQueue:   taskQueue,

		reviewHandler: handlers.NewReviewHandler(reviewService),
		statsHandler:  handlers.NewStatsHandler(services.NewStatsService(reviewStore)),
		healthHandler: handlers.NewHealthHandler(reviewStore, reviewEngine, taskQueue),
		sseHandler:    handlers.NewSSEHandler(events, auth),
	}

	if cfg.RateLimit.PerDay > 0 {
		svc.dailyLimiter = middleware.NewDailyRateLimiter(cfg.RateLimit.PerDay)
	}
	if cfg.RateLimit.PerHour > 0 {
		svc.submitLimiter = middleware.NewHourlyRateLimiter(cfg.RateLimit.PerHour, cfg.RateLimit.Burst)
	}

	// Local tasks run in-process; Redis tasks need a worker consuming the queue.
	switch queue := taskQueue.(type) {
	case *services.LocalQueue:
		queue.SetProcessor(reviewService.Process)
		queue.Start()
		services.RegisterQueueDepth(registry, queue)
	case *services.AsyncQueue:
		svc.worker = services.NewWorker(&cfg.Redis, cfg.Worker.Concurrency)
		svc.worker.SetProcessor(reviewService.Process)
		if err := svc.worker.Start(); err != nil {
			svc.shutdown()
			return nil, err
		}
	}

	if cfg.Worker.StaleAfter > 0 {
		svc.sweeper = services.NewStaleReviewSweeper(reviewService, cfg.Worker.StaleAfter)
		if err := svc.sweeper.Start(); err != nil {
			svc.shutdown()
			return nil, err
		}
	}

	return svc, nil
}

// shutdown stops background work first so in-flight reviews can still reach the database.
func (s *appServices) shutdown() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	s.dailyLimiter.Stop()
	s.submitLimiter.Stop()
	s.events.CloseAll()
	if err := models.CloseDB(s.db); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
	}
	logger.Info().Msg("All services stopped")
}
