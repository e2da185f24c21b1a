package wire

import (
	"log/slog"
	"os"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/logger"
)

// provideLogger builds the process-wide logger and installs it as the slog
// default so package-level logging lands in the same handler.
func provideLogger(cfg *config.Config) *slog.Logger {
	var out *os.File
	switch cfg.Logging.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	l := logger.New(cfg.Logging, out)
	slog.SetDefault(l)
	return l
}
