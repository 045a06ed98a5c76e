package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal"
)

// Registry is the public face of session tracking: it generates ids
// and delegates persistence to a Store.
type Registry struct {
	store Store
	ttl   time.Duration
}

// NewRegistry wraps store. ttl bounds each session's life on backends
// with expiry; ttl <= 0 stores sessions without expiry.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	return &Registry{store: store, ttl: ttl}
}

// Create registers a new session for userID and returns its id. data is
// stored as-is; nil is fine.
func (r *Registry) Create(ctx context.Context, userID string, data map[string]string) (string, error) {
	// A 16-byte random id collides with ~2^-128 probability, but a
	// collision here would silently merge two users' sessions, so the
	// cheap existence check stays.
	for attempt := 0; attempt < 3; attempt++ {
		sid, err := internal.NewSessionID()
		if err != nil {
			return "", err
		}
		id := sid.String()

		if _, err := r.store.Get(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}

		sess := &Session{
			SessionID: id,
			UserID:    userID,
			Data:      data,
			CreatedAt: now(),
		}
		if err := r.store.Save(ctx, sess, r.ttl); err != nil {
			return "", err
		}
		return id, nil
	}
	return "", errors.New("session id generation exhausted retries")
}

// Get returns the session for sessionID, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	return r.store.Get(ctx, sessionID)
}

// Delete removes sessionID; false means it was already gone.
func (r *Registry) Delete(ctx context.Context, sessionID string) (bool, error) {
	return r.store.Delete(ctx, sessionID)
}

// InvalidateAllForUser removes every session of userID and returns the
// count removed.
func (r *Registry) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	return r.store.DeleteAllForUser(ctx, userID)
}
