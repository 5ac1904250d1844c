// Package api exposes the job dispatcher over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig carries the collaborators of NewRouter.
type RouterConfig struct {
	Jobs  JobService
	Store Pinger
	// Transport is optional; readiness ignores transport health when nil.
	Transport HealthReporter
	// Metrics mounts the Prometheus handler on /metrics.
	Metrics bool
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
// Routes answer with or without a trailing slash.
func NewRouter(cfg RouterConfig, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.StripSlashes)
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.Store, cfg.Transport))
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/send-email", SendEmailHandler(cfg.Jobs))
		r.Post("/send-bulk-email", SendBulkEmailHandler(cfg.Jobs))
		r.Post("/send-template-email", SendTemplateEmailHandler(cfg.Jobs))
		r.Post("/send-email-with-attachment", SendEmailWithAttachmentHandler(cfg.Jobs))
		r.Get("/email-status/{task_id}", EmailStatusHandler(cfg.Jobs))
	})

	return r
}
