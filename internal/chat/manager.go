// Package chat serves triage sessions over WebSocket.
package chat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Conn is the part of a WebSocket connection the manager needs.
type Conn interface {
	Close(code websocket.StatusCode, reason string) error
}

// SessionManager tracks the live connection of every user tab. A second
// connection for the same tab replaces the first.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]Conn),
	}
}

// GetActive returns the active connection for a user and session.
func (m *SessionManager) GetActive(userID, sessionID string) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a connection for a user/session, closing any previous one.
func (m *SessionManager) Register(userID, sessionID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		go closeConn(existing, websocket.StatusPolicyViolation, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Chat connection registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the active connection.
func (m *SessionManager) Unregister(userID, sessionID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat connection unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Close terminates the connection of one user tab, if any.
func (m *SessionManager) Close(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	conn, ok := sessions[sessionID]
	if !ok {
		return
	}
	go closeConn(conn, websocket.StatusGoingAway, "session expired")
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
	slog.Info("Chat connection closed", "user_id", userID, "session_id", sessionID)
}

// CloseAll terminates every connection and waits for the close handshakes.
// Used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	var conns []Conn
	for userID, sessions := range m.active {
		for _, conn := range sessions {
			conns = append(conns, conn)
		}
		delete(m.active, userID)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeConn(conn, websocket.StatusGoingAway, "server shutting down")
		}()
	}
	wg.Wait()
}

// closeConn runs the close handshake, which blocks until the peer answers
// or the library times out, so callers never hold the manager lock here.
func closeConn(conn Conn, code websocket.StatusCode, reason string) {
	if err := conn.Close(code, reason); err != nil {
		slog.Debug("Failed to close chat connection", "error", err)
	}
}
