package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/service"
)

// HealthCheck probes one dependency, returning an error when it is down.
type HealthCheck func(ctx context.Context) error

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  map[string]HealthCheck
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, checks map[string]HealthCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, checks: checks}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health pings every registered dependency and reports per-check status.
func (h *MetricsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	checks := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
			overall = "degraded"
			continue
		}
		checks[name] = gin.H{"status": "up"}
	}

	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
