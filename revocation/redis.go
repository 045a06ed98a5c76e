package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a shared Store for multi-process deployments. The single-use
// claim is a SET NX with expiry: one round trip, atomic on the server.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a Store backed by the given client. prefix namespaces
// the keys; it defaults to "arv".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "arv"
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
	}
}

func (r *Redis) blacklistKey(tokenID string) string {
	return r.prefix + ":bl:" + tokenID
}

func (r *Redis) usedKey(tokenID string) string {
	return r.prefix + ":used:" + tokenID
}

// Blacklist records tokenID until ttl elapses.
//
//	Performance: 1 Redis SET.
func (r *Redis) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}

	if err := r.redis.Set(ctx, r.blacklistKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether tokenID has a live blacklist key.
//
//	Performance: 1 Redis EXISTS.
func (r *Redis) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// MarkRefreshUsed claims tokenID via SET NX. The server serializes
// concurrent claims; exactly one caller observes true.
//
//	Performance: 1 Redis SET NX (atomic).
func (r *Redis) MarkRefreshUsed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	claimed, err := r.redis.SetNX(ctx, r.usedKey(tokenID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return claimed, nil
}
