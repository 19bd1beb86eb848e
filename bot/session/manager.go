package session

import (
	"sync"
)

type entry struct {
	mu   sync.Mutex
	sess Session
}

// Manager is an in-memory session store keyed by user ID. The registry map
// has its own lock; each session carries a second lock so that conversations
// for different users never block each other.
type Manager struct {
	mu      sync.RWMutex
	entries map[int64]*entry
}

// NewManager constructs an empty session store.
func NewManager() *Manager {
	return &Manager{entries: make(map[int64]*entry)}
}

func (m *Manager) entryFor(userID int64) *entry {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok {
		return e
	}
	e = &entry{sess: Session{UserID: userID, State: StateIdle}}
	m.entries[userID] = e
	return e
}

// Update runs fn while holding the session's lock, creating the session on
// first contact. fn must not block on network or timers.
func (m *Manager) Update(userID int64, fn func(*Session)) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.sess)
}

// Snapshot returns a copy of the user's session.
func (m *Manager) Snapshot(userID int64) Session {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// StateOf returns the user's current state, StateIdle for unknown users.
func (m *Manager) StateOf(userID int64) State {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok {
		return StateIdle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.State
}

// InProgress reports whether text messages from the user belong to an active
// conversation rather than to command routing.
func (m *Manager) InProgress(userID int64) bool {
	switch m.StateOf(userID) {
	case StateIdle, StateCompleted:
		return false
	default:
		return true
	}
}
