package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	dataDir string
	redis   Pinger
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// lockout runs in memory.
func NewHealthHandler(dataDir string, redis Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{dataDir: dataDir, redis: redis, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. The data directory must exist and Redis, when
// configured, must answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if info, err := os.Stat(h.dataDir); err != nil || !info.IsDir() {
		checks["storage"] = "data directory unavailable"
		healthy = false
	} else {
		checks["storage"] = "ok"
	}

	if h.redis == nil {
		checks["redis"] = "not configured"
	} else if err := h.redis.Ping(ctx); err != nil {
		// login lockout falls back to memory, so this degrades but does not fail
		checks["redis"] = "degraded"
	} else {
		checks["redis"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !healthy {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, ReadinessResponse{Status: status, Checks: checks})

	h.logger.Debug("readiness check",
		slog.String("status", status),
		slog.String("storage", checks["storage"]),
		slog.String("redis", checks["redis"]),
	)
}
