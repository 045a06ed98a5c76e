package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id has no live entry.
var ErrNotFound = errors.New("session not found")

// ErrStoreUnavailable wraps backend transport failures.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Session is one authenticated presence of a user. Data carries small
// string metadata captured at login (client ip, user agent); it is
// opaque to the registry.
//
// Session instances are written once at creation and read thereafter.
type Session struct {
	SessionID string            `json:"sid"`
	UserID    string            `json:"uid"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt int64             `json:"cat"`
}

// Store persists sessions keyed by session id with a per-user index so
// InvalidateAllForUser does not scan the keyspace.
type Store interface {
	// Save persists sess. ttl bounds the entry's life where the backend
	// supports expiry; ttl <= 0 means no expiry.
	Save(ctx context.Context, sess *Session, ttl time.Duration) error

	// Get returns the session for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes sessionID. Returns true when an entry existed.
	// Deleting an absent id is not an error.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// DeleteAllForUser removes every session of userID and returns how
	// many were removed. Other users' sessions are untouched.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

func now() int64 { return time.Now().Unix() }
