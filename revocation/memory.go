package revocation

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 256

// Memory is a process-local Store for single-process deployments. All
// operations take one lock acquisition; MarkRefreshUsed is check-and-set
// under that single acquisition, which gives the required atomicity.
type Memory struct {
	mu          sync.Mutex
	blacklisted map[string]time.Time
	used        map[string]time.Time
	writes      int
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		blacklisted: make(map[string]time.Time),
		used:        make(map[string]time.Time),
	}
}

// Blacklist records tokenID until ttl elapses. Re-adding extends the expiry.
func (m *Memory) Blacklist(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blacklisted[tokenID] = time.Now().Add(ttl)
	m.maybeSweepLocked()
	return nil
}

// IsBlacklisted reports whether tokenID has an unexpired blacklist entry.
func (m *Memory) IsBlacklisted(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.blacklisted[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(m.blacklisted, tokenID)
		return false, nil
	}
	return true, nil
}

// MarkRefreshUsed claims tokenID for ttl. Exactly one concurrent caller
// receives true for a given id.
func (m *Memory) MarkRefreshUsed(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiry, ok := m.used[tokenID]; ok && now.Before(expiry) {
		return false, nil
	}
	m.used[tokenID] = now.Add(ttl)
	m.maybeSweepLocked()
	return true, nil
}

// maybeSweepLocked drops expired entries every sweepEvery writes so memory
// stays bounded by the live token population.
func (m *Memory) maybeSweepLocked() {
	m.writes++
	if m.writes%sweepEvery != 0 {
		return
	}

	now := time.Now()
	for id, expiry := range m.blacklisted {
		if now.After(expiry) {
			delete(m.blacklisted, id)
		}
	}
	for id, expiry := range m.used {
		if now.After(expiry) {
			delete(m.used, id)
		}
	}
}
