// Package live pushes preview and session updates to the host page over WebSocket.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/challenge-lab/internal/session"
)

// Hub tracks the live connection for each challenge session.
type Hub struct {
	mu     sync.RWMutex
	active map[session.Key]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[session.Key]*websocket.Conn),
	}
}

// Get returns the live connection for key, or nil.
func (h *Hub) Get(key session.Key) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[key]
}

// Register adds conn for key, closing any connection it replaces.
func (h *Hub) Register(key session.Key, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[key]; ok && existing != conn {
		go closeConn(existing, websocket.StatusNormalClosure, "session replaced")
	}
	h.active[key] = conn
	slog.Info("Live channel registered", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID)
}

// Unregister removes conn if it is still the registered connection for key.
func (h *Hub) Unregister(key session.Key, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[key]; ok && current == conn {
		delete(h.active, key)
		slog.Info("Live channel unregistered", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID)
	}
}

// Close terminates the live connection for key. It is used as the session
// sweeper's cleanup callback.
func (h *Hub) Close(key session.Key) {
	h.mu.Lock()
	conn, ok := h.active[key]
	delete(h.active, key)
	h.mu.Unlock()

	if ok {
		go closeConn(conn, websocket.StatusGoingAway, "session expired")
		slog.Info("Live channel closed", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID)
	}
}

// CloseUser terminates every live connection belonging to userID.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	var closing []*websocket.Conn
	for key, conn := range h.active {
		if key.UserID == userID {
			closing = append(closing, conn)
			delete(h.active, key)
		}
	}
	h.mu.Unlock()

	for _, conn := range closing {
		go closeConn(conn, websocket.StatusNormalClosure, "session closed")
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// closeConn runs the close handshake, which waits on the peer, off the caller's goroutine.
func closeConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	if err := conn.Close(code, reason); err != nil {
		slog.Debug("Failed to close live channel", "error", err)
	}
}
