// Package fanout pushes newly ingested messages to the live web sessions
// of the affected user. Push is a convenience layer: delivery is
// best-effort and dropped notifications are recovered by the client's
// next conversation fetch.
package fanout

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/metrics"
	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// Pusher is one live session's write end. *Session implements it over a
// websocket connection; tests substitute stubs.
type Pusher interface {
	Push(v interface{}) error
}

// Event is the envelope pushed to sessions.
type Event struct {
	Type    string          `json:"type"` // "message"
	Message *models.Message `json:"message"`
}

// Hub is the per-process registry of live sessions, one logical room per
// user id. A user may hold several sessions (tabs, devices).
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Pusher]struct{}
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[Pusher]struct{}),
		logger: logger,
	}
}

// Join adds a session to the user's room.
func (h *Hub) Join(userID string, s Pusher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[Pusher]struct{})
		h.rooms[userID] = room
	}
	room[s] = struct{}{}
}

// Leave removes a session from the user's room.
func (h *Hub) Leave(userID string, s Pusher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[userID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, userID)
	}
}

// Sessions returns the number of live sessions in the user's room.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Notify pushes msg to every session in the user's room and returns how
// many sessions it reached. No sessions means the notification is dropped;
// a failed write counts as a drop for that session but never aborts the rest.
func (h *Hub) Notify(userID string, msg *models.Message) int {
	h.mu.RLock()
	sessions := make([]Pusher, 0, len(h.rooms[userID]))
	for s := range h.rooms[userID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	event := Event{Type: "message", Message: msg}
	delivered := 0
	for _, s := range sessions {
		if err := s.Push(event); err != nil {
			h.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Str("message_id", msg.ID).
				Msg("session push failed")
			continue
		}
		delivered++
	}

	metrics.NotifyAttempts.Inc()
	if delivered == 0 {
		metrics.NotifyDropped.Inc()
	} else {
		metrics.NotifyDelivered.Add(float64(delivered))
	}
	return delivered
}
