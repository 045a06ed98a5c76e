package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
)

// ErrBackendUnavailable wraps Redis transport failures.
var ErrBackendUnavailable = errors.New("user store backend unavailable")

type userBlob struct {
	UserID       string   `json:"uid"`
	Identifier   string   `json:"id"`
	Email        string   `json:"email,omitempty"`
	PasswordHash string   `json:"hash"`
	Permissions  []string `json:"perms,omitempty"`
}

// Redis is a shared UserStore. Records are JSON blobs keyed by
// identifier; failed attempts are an INCR counter whose key TTL is the
// lockout window, so lockouts expire without a sweeper.
type Redis struct {
	cfg    Config
	hasher *password.Hasher
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a store backed by the given client. prefix
// namespaces the keys; it defaults to "au".
func NewRedis(client redis.UniversalClient, prefix string, cfg Config) (*Redis, error) {
	cfg = cfg.withDefaults()
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "au"
	}
	return &Redis{
		cfg:    cfg,
		hasher: hasher,
		redis:  client,
		prefix: prefix,
	}, nil
}

func (r *Redis) recordKey(identifier string) string {
	return r.prefix + ":rec:" + identifier
}

func (r *Redis) identifierKey(userID string) string {
	return r.prefix + ":uid:" + userID
}

func (r *Redis) attemptsKey(identifier string) string {
	return r.prefix + ":fa:" + identifier
}

// Add registers a user, hashing plaintext. Re-adding an identifier
// replaces the record and clears its failed-attempt counter.
func (r *Redis) Add(ctx context.Context, userID, identifier, email, plaintext string, permissions []string) (authcore.UserRecord, error) {
	hash, err := r.hasher.Hash(plaintext)
	if err != nil {
		return authcore.UserRecord{}, err
	}

	blob, err := json.Marshal(userBlob{
		UserID:       userID,
		Identifier:   identifier,
		Email:        email,
		PasswordHash: hash,
		Permissions:  permissions,
	})
	if err != nil {
		return authcore.UserRecord{}, err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.recordKey(identifier), blob, 0)
		pipe.Set(ctx, r.identifierKey(userID), identifier, 0)
		pipe.Del(ctx, r.attemptsKey(identifier))
		return nil
	})
	if err != nil {
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return authcore.UserRecord{
		UserID:       userID,
		Identifier:   identifier,
		Email:        email,
		PasswordHash: hash,
		Permissions:  permissions,
	}, nil
}

// FindByIdentifier loads the record and derives Locked from the
// failed-attempt counter.
//
//	Performance: 2 Redis GETs.
func (r *Redis) FindByIdentifier(ctx context.Context, identifier string) (authcore.UserRecord, error) {
	data, err := r.redis.Get(ctx, r.recordKey(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var blob userBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return authcore.UserRecord{}, fmt.Errorf("%w: corrupt user record: %v", ErrBackendUnavailable, err)
	}

	record := authcore.UserRecord{
		UserID:       blob.UserID,
		Identifier:   blob.Identifier,
		Email:        blob.Email,
		PasswordHash: blob.PasswordHash,
		Permissions:  blob.Permissions,
	}

	count, err := r.redis.Get(ctx, r.attemptsKey(identifier)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	record.Locked = count >= r.cfg.MaxAttempts

	return record, nil
}

// VerifyPassword checks plaintext against the record's stored hash.
func (r *Redis) VerifyPassword(_ context.Context, record authcore.UserRecord, plaintext string) (bool, error) {
	return r.hasher.Verify(plaintext, record.PasswordHash)
}

// RecordFailedAttempt increments the counter; the key TTL doubles as
// the lockout window once the count crosses MaxAttempts.
func (r *Redis) RecordFailedAttempt(ctx context.Context, identifier string) error {
	key := r.attemptsKey(identifier)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	// Refresh the window on every failure so the lockout counts from
	// the most recent attempt.
	ttl := r.cfg.LockoutDuration
	if count < int64(r.cfg.MaxAttempts) {
		ttl = r.cfg.LockoutDuration / 2
		if ttl <= 0 {
			ttl = time.Minute
		}
	}
	if err := r.redis.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// ResetFailedAttempts clears the counter for userID.
func (r *Redis) ResetFailedAttempts(ctx context.Context, userID string) error {
	identifier, err := r.redis.Get(ctx, r.identifierKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := r.redis.Del(ctx, r.attemptsKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
