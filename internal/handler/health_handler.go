package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-ingest/internal/response"
)

// Pinger is anything with a liveness check (pgxpool.Pool, redis ping).
type Pinger func(ctx context.Context) error

// HealthHandler reports dependency health.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		response.FailWithFields(c, http.StatusServiceUnavailable, response.ErrUnavailable, status)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": status})
}
