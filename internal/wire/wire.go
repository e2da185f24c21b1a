//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/app"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(
		app.NewApp,
		config.LoadConfig,
		provideLogger,
	)
	return &app.App{}, nil, nil
}
