package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub tracks the open event channel sessions so results can be broadcast
// to every connected client.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	logger   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
	if h.closed {
		s.cancel()
	}
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.id)
}

// Count returns the number of open sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll cancels every open session and blocks until all of them have
// been removed or ctx is done.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, s := range h.sessions {
		s.cancel()
	}
	h.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for h.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Broadcast sends event to every open session. Write failures are logged
// and do not stop delivery to the others.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.emit(event, "", data); err != nil {
			h.logger.Warn().Err(err).Str("connection_id", s.id).Str("event", event).Msg("broadcast failed")
		}
	}
}
