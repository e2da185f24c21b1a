// Package app initializes and orchestrates the main components of the review
// service: configuration, the review pipeline, the worker pool and the HTTP
// server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/cache"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/db"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/gitlab"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/jobs"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/llm"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/review"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/server"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/storage"
)

// App holds the running components of the service.
type App struct {
	cfg        *config.Config
	server     *server.Server
	logger     *slog.Logger
	dispatcher core.JobDispatcher
}

// NewReviewer builds the review pipeline with its optional cache and history
// backends. The returned cleanup closes whatever backends were opened.
func NewReviewer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*review.Pipeline, storage.Store, func(), error) {
	catalog, err := config.LoadModelCatalog(cfg.AI.CatalogPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load model catalog: %w", err)
	}

	prompts, err := llm.NewPromptManager()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	dispatcher := llm.NewDispatcher(llm.NewChatClient(cfg.AI), cfg.AI, logger)
	hostFactory := gitlab.Factory(logger)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var resultCache review.ResultCache
	if cfg.CacheEnabled() {
		redisCache, err := cache.New(ctx, cfg.Cache, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to cache: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := redisCache.Close(); err != nil {
				logger.Error("failed to close cache connection", "error", err)
			}
		})
		resultCache = redisCache
		logger.Info("review cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	var store storage.Store
	if cfg.DatabaseEnabled() {
		dbConn, dbCleanup, err := db.NewDatabase(&cfg.Database)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		cleanups = append(cleanups, dbCleanup)
		store = storage.NewStore(dbConn.DB)
		logger.Info("review history store enabled", "host", cfg.Database.Host)
	}

	pipeline := review.NewPipeline(cfg, catalog, hostFactory, prompts, dispatcher, resultCache, store, logger)
	return pipeline, store, cleanup, nil
}

// NewApp sets up the service with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Info("initializing review service",
		"default_model", cfg.AI.DefaultModel,
		"fallback_model", cfg.AI.FallbackModel,
		"max_workers", cfg.Review.MaxWorkers,
	)

	pipeline, store, cleanup, err := NewReviewer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	reviewJob := jobs.NewReviewJob(pipeline, gitlab.Factory(logger), logger)
	jobDispatcher := jobs.NewDispatcher(reviewJob, cfg.Review.MaxWorkers, logger)

	router := server.NewRouter(cfg, pipeline, jobDispatcher, store, logger)
	httpServer := server.NewServer(cfg, router, logger)

	app := &App{
		cfg:        cfg,
		server:     httpServer,
		logger:     logger,
		dispatcher: jobDispatcher,
	}
	logger.Info("review service initialized")
	return app, cleanup, nil
}

// Start runs the HTTP server and blocks until shutdown.
func (a *App) Start() error {
	a.logger.Info("starting review service", "port", a.cfg.Server.Port)
	return a.server.Start()
}

// Stop shuts the service down: the HTTP server first so no new requests
// arrive, then the worker pool so queued batch reviews finish.
func (a *App) Stop() error {
	a.logger.Info("shutting down review service")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("review service stopped")
	return nil
}
