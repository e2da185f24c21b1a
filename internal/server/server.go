// Package server implements the HTTP surface of the review service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
)

// Server wraps an HTTP server with graceful shutdown.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP server around an already-built router.
func NewServer(cfg *config.Config, router http.Handler, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
			// Reviews stream through slow model calls; write generously.
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.Review.Timeout + 30*time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server with a 30-second timeout.
func (s *Server) Stop() error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
