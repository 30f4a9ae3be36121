package services

import (
	"sync"
	"time"

	"github.com/huangang/codecritic/internal/models"
)

// ReviewEvent is a review status transition pushed to SSE subscribers.
type ReviewEvent struct {
	ID           string              `json:"id"`
	Status       models.ReviewStatus `json:"status"`
	Language     models.Language     `json:"language"`
	QualityScore *int                `json:"quality_score,omitempty"`
	Error        string              `json:"error,omitempty"`
	At           time.Time           `json:"at"`
}

func newReviewEvent(review *models.Review, at time.Time) ReviewEvent {
	event := ReviewEvent{
		ID:       review.ID,
		Status:   review.Status,
		Language: review.Language,
		At:       at,
	}
	if review.Result != nil {
		score := review.Result.QualityScore
		event.QualityScore = &score
	}
	if review.ErrorMessage != nil {
		event.Error = *review.ErrorMessage
	}
	return event
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan ReviewEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan ReviewEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan ReviewEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ReviewEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. A client whose buffer is full misses the event.
func (h *SSEHub) Publish(event ReviewEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// CloseAll disconnects every client; used on shutdown so streaming handlers return.
func (h *SSEHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
