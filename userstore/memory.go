package userstore

import (
	"context"
	"sync"
	"time"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
)

// Config tunes the lockout policy shared by both implementations.
type Config struct {
	// MaxAttempts is the failed-login count that locks an account.
	MaxAttempts int
	// LockoutDuration is how long a lockout lasts.
	LockoutDuration time.Duration
	// Password overrides the argon2id parameters; zero value uses
	// password.DefaultParams.
	Password password.Params
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.Password == (password.Params{}) {
		c.Password = password.DefaultParams()
	}
	return c
}

type attemptState struct {
	count       int
	lockedUntil time.Time
}

// Memory is an in-process UserStore. Suitable for tests, examples, and
// single-binary deployments with a small fixed user set.
type Memory struct {
	cfg    Config
	hasher *password.Hasher

	mu           sync.RWMutex
	byIdentifier map[string]authcore.UserRecord
	identifierOf map[string]string // userID -> identifier
	attempts     map[string]attemptState
}

// NewMemory returns an empty store.
func NewMemory(cfg Config) (*Memory, error) {
	cfg = cfg.withDefaults()
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	return &Memory{
		cfg:          cfg,
		hasher:       hasher,
		byIdentifier: make(map[string]authcore.UserRecord),
		identifierOf: make(map[string]string),
		attempts:     make(map[string]attemptState),
	}, nil
}

// Add registers a user, hashing plaintext. Re-adding an identifier
// replaces the record and clears its lockout state.
func (m *Memory) Add(userID, identifier, email, plaintext string, permissions []string) (authcore.UserRecord, error) {
	hash, err := m.hasher.Hash(plaintext)
	if err != nil {
		return authcore.UserRecord{}, err
	}

	record := authcore.UserRecord{
		UserID:       userID,
		Identifier:   identifier,
		Email:        email,
		PasswordHash: hash,
		Permissions:  permissions,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byIdentifier[identifier] = record
	m.identifierOf[userID] = identifier
	delete(m.attempts, identifier)
	return record, nil
}

// FindByIdentifier returns the record with Locked reflecting the
// current lockout window.
func (m *Memory) FindByIdentifier(_ context.Context, identifier string) (authcore.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byIdentifier[identifier]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	if state, ok := m.attempts[identifier]; ok && time.Now().Before(state.lockedUntil) {
		record.Locked = true
	}
	return record, nil
}

// VerifyPassword checks plaintext against the record's stored hash.
func (m *Memory) VerifyPassword(_ context.Context, record authcore.UserRecord, plaintext string) (bool, error) {
	return m.hasher.Verify(plaintext, record.PasswordHash)
}

// RecordFailedAttempt counts one failure; reaching MaxAttempts starts a
// lockout window.
func (m *Memory) RecordFailedAttempt(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.attempts[identifier]
	if !state.lockedUntil.IsZero() && time.Now().After(state.lockedUntil) {
		state = attemptState{}
	}
	state.count++
	if state.count >= m.cfg.MaxAttempts {
		state.lockedUntil = time.Now().Add(m.cfg.LockoutDuration)
	}
	m.attempts[identifier] = state
	return nil
}

// ResetFailedAttempts clears the counter and any lockout for userID.
func (m *Memory) ResetFailedAttempts(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if identifier, ok := m.identifierOf[userID]; ok {
		delete(m.attempts, identifier)
	}
	return nil
}
