package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is the activity record of one chat session. The transcript itself
// lives in the history store; this only tracks liveness.
type Session struct {
	ID             string    `json:"session_id"`
	Turns          int       `json:"turns"`
	Clears         int       `json:"clears"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Manager tracks sessions seen by this process. Sessions are created
// implicitly on first use and forgotten after an idle timeout.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	onExpire    func(*Session)
	now         func() time.Time
}

func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a fresh random session id.
func (m *Manager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// RecordTurn counts a completed turn, registering the session if needed.
func (m *Manager) RecordTurn(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateLocked(sessionID)
	s.Turns++
	s.LastActivityAt = m.now()
	return clone(s)
}

// RecordClear notes that the session's history was dropped.
func (m *Manager) RecordClear(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateLocked(sessionID)
	s.Turns = 0
	s.Clears++
	s.LastActivityAt = m.now()
	return clone(s)
}

func (m *Manager) getOrCreateLocked(sessionID string) *Session {
	s, ok := m.sessions[sessionID]
	if !ok {
		now := m.now()
		s = &Session{ID: sessionID, StartedAt: now, LastActivityAt: now}
		m.sessions[sessionID] = s
	}
	return s
}

// List returns tracked sessions, most recently active first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) < m.idleTimeout {
			continue
		}
		expired = append(expired, clone(s))
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
