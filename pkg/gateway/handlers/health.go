// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/qboxio/qbox/pkg/gateway/response"
	"github.com/qboxio/qbox/pkg/version"
)

// HealthHandler serves the gateway's liveness/readiness/status endpoints.
// Qbox has no background engine to report on: readiness reduces to
// whether at least one saga configuration document was loaded, since a
// gateway with none would only ever proxy traffic through untouched.
type HealthHandler struct {
	startedAt time.Time
	sagaCount func() int
}

// NewHealthHandler creates a health handler. sagaCount is polled on every
// /ready and /status request so a future config reload is reflected live.
func NewHealthHandler(sagaCount func() int) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now().UTC(),
		sagaCount: sagaCount,
	}
}

// Health handles the /health endpoint (liveness probe).
// @Summary Health check
// @Description Check if the gateway process is alive and running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string "Service is healthy"
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe).
// @Summary Readiness check
// @Description Check if the gateway has saga configuration loaded
// @Tags health
// @Produce json
// @Success 200 {object} map[string]bool "Service is ready"
// @Failure 503 {object} map[string]bool "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.count() > 0 {
		response.JSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}
	response.JSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
}

// Status handles the /status endpoint (detailed status).
// @Summary Detailed status
// @Description Get detailed status information about the gateway
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any "Detailed status information"
// @Router /status [get]
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
		"saga_configs":   h.count(),
		"version":        version.Version,
	})
}

func (h *HealthHandler) count() int {
	if h.sagaCount == nil {
		return 0
	}
	return h.sagaCount()
}
