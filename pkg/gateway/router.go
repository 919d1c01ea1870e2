// Package gateway wires the HTTP front door: middleware, health routes,
// and the saga dispatch/passthrough handler.
package gateway

import (
	"github.com/go-chi/chi/v5"

	"github.com/qboxio/qbox/config"
	"github.com/qboxio/qbox/pkg/gateway/handlers"
	"github.com/qboxio/qbox/pkg/gateway/middleware"
	"github.com/qboxio/qbox/pkg/logger"
)

// Handlers holds all HTTP handlers the gateway serves.
type Handlers struct {
	// Dispatch matches and either runs a saga or proxies, for every
	// inbound request not claimed by a carve-out route below.
	Dispatch *handlers.DispatchHandler

	// Health serves /health, /ready, /status.
	Health *handlers.HealthHandler

	// Metrics is the optional HTTP metrics recorder.
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))

	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}

	r.Use(middleware.RateLimit(&cfg.Server.RateLimit))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	RegisterRoutes(r, h)

	return r
}

// RegisterRoutes registers the carve-out routes and the catch-all
// dispatch handler. Unlike a conventional API gateway, Qbox intercepts
// ALL inbound traffic — only health/readiness/status are reserved paths;
// everything else (including paths that look like they might be health
// routes on the upstream side) is handled by Dispatch, which decides
// saga-vs-passthrough per request.
func RegisterRoutes(r chi.Router, h *Handlers) {
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	// Every path other than the three above — any method, any route —
	// falls through to Dispatch, which decides saga-vs-passthrough.
	if h.Dispatch != nil {
		r.NotFound(h.Dispatch.ServeHTTP)
		r.MethodNotAllowed(h.Dispatch.ServeHTTP)
	}
}
