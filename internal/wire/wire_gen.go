// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/app"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/review"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := provideLogger(cfg)

	application, cleanup, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, cleanup, nil
}

// InitializeReviewer wires only the review pipeline, for one-shot CLI runs
// that do not need the HTTP server or the worker pool.
func InitializeReviewer(ctx context.Context) (*review.Pipeline, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := provideLogger(cfg)

	pipeline, _, cleanup, err := app.NewReviewer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, cleanup, nil
}
