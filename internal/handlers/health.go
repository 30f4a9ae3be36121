package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/internal/engine"
	"github.com/huangang/codecritic/internal/services"
	"github.com/huangang/codecritic/internal/store"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports subsystem reachability. It always answers 200 so load balancers can tell
// a live process from a dead one; the body says which dependency is down.
type HealthHandler struct {
	store  store.Review
	engine engine.Engine
	queue  services.TaskQueue
}

func NewHealthHandler(st store.Review, eng engine.Engine, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{store: st, engine: eng, queue: queue}
}

// CheckHealth returns the health status of all subsystems. The engine status is reported under
// "openai", the name existing dashboards read, and under the provider-neutral "ai".
// GET /api/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	dbStatus := "connected"
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	aiStatus := "disconnected"
	if h.engine != nil && h.engine.HasCredentials() {
		aiStatus = "connected"
	}

	queueMode := "local"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"database":   dbStatus,
		"openai":     aiStatus,
		"ai":         aiStatus,
		"queue_mode": queueMode,
	})
}

// Root is the service banner
// GET /
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "AI Code Review Service API",
		"version": "1.0.0",
	})
}
