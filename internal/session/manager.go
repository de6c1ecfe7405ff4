package session

import (
	"time"

	"invoicedash/internal/cache"
	"invoicedash/internal/log"
	"invoicedash/internal/services"

	"github.com/google/uuid"
)

// DefaultMaxSessions caps how many sessions are kept before the least
// recently used one is torn down.
const DefaultMaxSessions = 256

// Manager keys sessions by an opaque ID carried in a cookie. Sessions idle
// longer than the TTL are torn down.
type Manager struct {
	sessions *cache.LRUCache[*Session]
	logger   *log.Logger
}

func NewManager(ttl time.Duration, maxSessions int, logger *log.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = log.Discard()
	}
	m := &Manager{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl),
		logger:   logger.WithComponent(log.ComponentSession),
	}
	m.sessions.OnEvict(func(id string, s *Session) {
		s.Close()
		m.logger.Debug("Session torn down", log.FieldSessionID, id)
	})
	return m
}

// Create starts a session bound to svc.
func (m *Manager) Create(svc *services.InvoiceService) *Session {
	s := New(uuid.NewString(), svc)
	m.sessions.Set(s.ID, s)
	m.logger.Debug("Session created", log.FieldSessionID, s.ID)
	return s
}

// Get returns the live session with id and extends its idle deadline.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := m.sessions.Get(id)
	if !ok || s.Closed() {
		return nil, false
	}
	m.sessions.Touch(id)
	return s, true
}

// Delete tears down the session with id.
func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// Cleaner exposes the session cache to a cache.Manager sweep.
func (m *Manager) Cleaner() cache.Cleaner {
	return m.sessions
}

// SetClock replaces the time source used for idle expiry. Used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.sessions.SetClock(now)
}
