// Package health exposes liveness and readiness endpoints for probes.
package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flowstate/internal/metrics"
	"flowstate/pkg/logger"
)

// FeedProbe reports upstream feed connectivity
type FeedProbe interface {
	IsConnected() bool
}

// EngineProbe reports engine liveness through its stats read
type EngineProbe interface {
	Stats() metrics.EngineStats
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	feed        FeedProbe
	engine      EngineProbe
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a health check handler. feed may be nil when the service runs
// on a synthetic source.
func New(log *logger.Logger, feed FeedProbe, engine EngineProbe, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		feed:        feed,
		engine:      engine,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy" or "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HandleLiveness returns 200 OK while the process runs
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleReadiness reports whether the service should receive viewers. The
// engine check is mandatory; the feed check applies only when a feed exists.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]ComponentHealth)
	ready := true

	if h.engine != nil {
		checks["engine"] = ComponentHealth{Status: "healthy"}
	} else {
		checks["engine"] = ComponentHealth{Status: "unhealthy", Detail: "engine not initialized"}
		ready = false
	}

	if h.feed != nil {
		if h.feed.IsConnected() {
			checks["feed"] = ComponentHealth{Status: "healthy"}
		} else {
			checks["feed"] = ComponentHealth{Status: "unhealthy", Detail: "upstream feed disconnected"}
			ready = false
		}
	}

	h.write(w, checks, ready)
}

// HandleHealth is the detailed status endpoint for humans and dashboards
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]ComponentHealth)
	healthy := true

	if h.feed != nil && !h.feed.IsConnected() {
		checks["feed"] = ComponentHealth{Status: "unhealthy", Detail: "upstream feed disconnected"}
		healthy = false
	} else if h.feed != nil {
		checks["feed"] = ComponentHealth{Status: "healthy"}
	}

	if h.engine != nil {
		stats := h.engine.Stats()
		checks["engine"] = ComponentHealth{
			Status: "healthy",
			Detail: fmt.Sprintf("%d topics tracked, %.1f msg/s", stats.TopicsTracked, stats.ChatVelocity),
		}
	} else {
		checks["engine"] = ComponentHealth{Status: "unhealthy", Detail: "engine not initialized"}
		healthy = false
	}

	h.write(w, checks, healthy)
}

func (h *Handler) write(w http.ResponseWriter, checks map[string]ComponentHealth, healthy bool) {
	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	code := http.StatusOK
	if !healthy {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warn("Health check failed", "checks", checks)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
