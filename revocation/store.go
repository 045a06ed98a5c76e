package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps backend transport failures. The engine maps it
// asymmetrically: blacklist lookups fail open, single-use claims fail closed.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// Store tracks denied token identifiers and single-use refresh claims.
//
// MarkRefreshUsed is the concurrency-critical operation: it must be a single
// atomic set-if-not-exists so that of N concurrent callers presenting the
// same token id exactly one receives true. Implementations must not split it
// into a check followed by a set.
type Store interface {
	// Blacklist records tokenID as denied until ttl elapses. Idempotent.
	Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsBlacklisted reports whether tokenID is currently denied.
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)

	// MarkRefreshUsed atomically claims tokenID as used for ttl. Returns
	// true iff this call made the claim; false when already used.
	MarkRefreshUsed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}
