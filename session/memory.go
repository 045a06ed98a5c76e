package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. A per-user index keeps
// DeleteAllForUser proportional to that user's session count.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Save persists sess. The memory backend has no per-entry expiry; use
// Sweep from a cleanup loop when ttl matters.
func (m *MemoryStore) Save(_ context.Context, sess *Session, _ time.Duration) error {
	cp := *sess
	if sess.Data != nil {
		cp.Data = make(map[string]string, len(sess.Data))
		for k, v := range sess.Data {
			cp.Data[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[cp.SessionID] = &cp
	ids, ok := m.byUser[cp.UserID]
	if !ok {
		ids = make(map[string]struct{})
		m.byUser[cp.UserID] = ids
	}
	ids[cp.SessionID] = struct{}{}
	return nil
}

// Get returns the session for sessionID, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// Delete removes sessionID and reports whether an entry existed.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	m.deleteLocked(sess)
	return true, nil
}

// DeleteAllForUser removes every session of userID.
func (m *MemoryStore) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.byUser[userID]
	if !ok {
		return 0, nil
	}

	removed := 0
	for id := range ids {
		if sess, live := m.sessions[id]; live {
			m.deleteLocked(sess)
			removed++
		}
	}
	delete(m.byUser, userID)
	return removed, nil
}

// Sweep removes sessions created more than maxAge ago and returns the
// count. Intended for a periodic cleanup goroutine owned by the caller.
func (m *MemoryStore) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxAge).Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, sess := range m.sessions {
		if sess.CreatedAt < cutoff {
			m.deleteLocked(sess)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) deleteLocked(sess *Session) {
	delete(m.sessions, sess.SessionID)
	if ids, ok := m.byUser[sess.UserID]; ok {
		delete(ids, sess.SessionID)
		if len(ids) == 0 {
			delete(m.byUser, sess.UserID)
		}
	}
}
