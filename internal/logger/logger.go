// Package logger builds the application's slog handler from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
)

// New initializes a slog logger based on the provided configuration. When
// output is nil the configured destination is used; tests pass a buffer.
func New(cfg config.LoggingConfig, output io.Writer) *slog.Logger {
	if output == nil {
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		default:
			output = os.Stdout
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
