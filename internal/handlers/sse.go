package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/codecritic/internal/middleware"
	"github.com/huangang/codecritic/internal/services"
	"github.com/huangang/codecritic/pkg/logger"
)

// SSEHandler streams review status transitions as Server-Sent Events
type SSEHandler struct {
	hub  *services.SSEHub
	auth middleware.TokenAuth
}

func NewSSEHandler(hub *services.SSEHub, auth middleware.TokenAuth) *SSEHandler {
	return &SSEHandler{hub: hub, auth: auth}
}

// StreamReviewEvents handles SSE connections for review status updates.
// EventSource cannot set headers, so the token may also come from ?token=.
// GET /api/events/reviews
func (h *SSEHandler) StreamReviewEvents(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(middleware.TokenHeader)
	}
	if !h.auth.Valid(token) {
		middleware.AbortInvalidToken(c)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()

	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	// Send headers now; the first event may be a long way off.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
