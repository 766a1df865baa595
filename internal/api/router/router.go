package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gsdriver/alexa-logger/internal/http/handlers"
	httpmiddleware "github.com/gsdriver/alexa-logger/internal/http/middleware"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LogsHandler    *handlers.LogsHandler
	MetricsHandler http.Handler
	// RateLimiter throttles log ingestion per client IP when set.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.LogsHandler != nil {
		r.Route("/v1", func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			r.Post("/logs", cfg.LogsHandler.CreateLog)
		})
	}

	return r
}
