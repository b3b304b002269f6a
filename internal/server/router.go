package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docextract/internal/api"
	"github.com/cloo-solutions/docextract/internal/api/handlers"
	"github.com/cloo-solutions/docextract/internal/api/middleware"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 10 * 1024 * 1024

type RouterConfig struct {
	APIKeys           *middleware.StaticKeys
	MaxBodyBytes      int64
	Logger            *slog.Logger
	ExtractionHandler *handlers.ExtractionHandler
	RunHandler        *handlers.RunHandler
	// JobHandler is nil when no database is configured
	JobHandler *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))

		r.Post("/extractions", cfg.ExtractionHandler.Extract)
		r.Post("/segments", cfg.ExtractionHandler.Segment)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", cfg.RunHandler.Get)
			r.Get("/{id}/entities", cfg.RunHandler.Entities)
		})

		if cfg.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", cfg.JobHandler.Submit)
				r.Get("/", cfg.JobHandler.List)
				r.Get("/{id}", cfg.JobHandler.Get)
				r.Get("/{id}/result", cfg.JobHandler.Result)
			})
			r.Post("/uploads", cfg.JobHandler.CreateUpload)
		}
	})

	return r
}
