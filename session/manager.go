package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Manager is the registry of live sessions, keyed by client ID. It
// enforces the single-session-per-client-ID rule: registering an ID that
// is already connected hands the previous session back to the caller for
// take-over.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idPrefix string
}

// NewManager creates an empty session registry
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		idPrefix: "auto-",
	}
}

// Register installs a session under its client ID and returns the session
// it displaced, if any. The caller must force-close the displaced session
// before completing the new connection's handshake.
func (m *Manager) Register(sess *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.sessions[sess.ClientID]
	m.sessions[sess.ClientID] = sess
	return prev
}

// Get returns the session for a client ID
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[clientID]
	return sess, ok
}

// Remove deletes the registry entry, but only if it still points at the
// given session. During take-over the displaced session must not unregister
// its successor.
func (m *Manager) Remove(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.sessions[sess.ClientID]; ok && current == sess {
		delete(m.sessions, sess.ClientID)
	}
}

// All returns a snapshot of all registered sessions
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Count returns the number of registered sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GenerateClientID assigns an identifier to a client that connected with
// an empty one (allowed only with clean session set)
func (m *Manager) GenerateClientID() string {
	return m.idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
