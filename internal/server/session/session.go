package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the cookie that carries the admin session token.
	CookieName = "locker_session"

	DefaultTTL = 12 * time.Hour
)

// Manager keeps admin sessions in memory, keyed by an opaque token.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a session manager whose sessions live for ttl.
// A non-positive ttl selects DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the lifetime of a new session.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session and returns its token.
func (m *Manager) Create() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()

	token := uuid.NewString()
	m.sessions[token] = m.now().Add(m.ttl)
	return token
}

// Valid reports whether token belongs to a live session.
func (m *Manager) Valid(token string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expires, ok := m.sessions[token]
	if !ok {
		return false
	}
	if m.now().After(expires) {
		delete(m.sessions, token)
		return false
	}
	return true
}

// Revoke ends a session. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()
	return len(m.sessions)
}

func (m *Manager) pruneLocked() {
	now := m.now()
	for token, expires := range m.sessions {
		if now.After(expires) {
			delete(m.sessions, token)
		}
	}
}
