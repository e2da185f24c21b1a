package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/server/handler"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/storage"
)

// NewRouter configures the middleware stack and API routes.
func NewRouter(
	cfg *config.Config,
	service handler.ReviewService,
	dispatcher core.JobDispatcher,
	store storage.Store,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The request timeout must outlive the review deadline so the pipeline,
	// not the router, decides when a review has taken too long.
	r.Use(middleware.Timeout(cfg.Review.Timeout + 30*time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		reviewHandler := handler.NewReviewHandler(cfg, service, dispatcher, store, logger)
		r.Get("/review-types", reviewHandler.ReviewTypes)
		r.Post("/review", reviewHandler.Review)
		r.Post("/review/comment", reviewHandler.ReviewAndComment)
		r.Post("/review/update-mr", reviewHandler.UpdateMR)
		r.Post("/batch-review", reviewHandler.BatchReview)
		if store != nil {
			r.Get("/review/latest", reviewHandler.LatestReview)
		}
	})

	return r
}
