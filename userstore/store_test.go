package userstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
)

func testConfig() Config {
	return Config{
		MaxAttempts:     3,
		LockoutDuration: time.Minute,
		Password: password.Params{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		},
	}
}

func newMemoryWithUser(t *testing.T) *Memory {
	t.Helper()
	store, err := NewMemory(testConfig())
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if _, err := store.Add("u1", "alice", "alice@example.com", "hunter2hunter2", []string{"read", "write"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return store
}

func newRedisWithUser(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := NewRedis(rdb, "au", testConfig())
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	if _, err := store.Add(context.Background(), "u1", "alice", "alice@example.com", "hunter2hunter2", []string{"read", "write"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return store, mr
}

func userStores(t *testing.T) map[string]authcore.UserStore {
	t.Helper()
	rs, _ := newRedisWithUser(t)
	return map[string]authcore.UserStore{
		"memory": newMemoryWithUser(t),
		"redis":  rs,
	}
}

func TestFindAndVerify(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			record, err := store.FindByIdentifier(ctx, "alice")
			if err != nil {
				t.Fatalf("FindByIdentifier failed: %v", err)
			}
			if record.UserID != "u1" || record.Email != "alice@example.com" {
				t.Fatalf("unexpected record: %+v", record)
			}
			if len(record.Permissions) != 2 {
				t.Fatalf("permissions lost: %v", record.Permissions)
			}
			if record.Locked {
				t.Fatal("fresh account must not be locked")
			}

			ok, err := store.VerifyPassword(ctx, record, "hunter2hunter2")
			if err != nil {
				t.Fatalf("VerifyPassword failed: %v", err)
			}
			if !ok {
				t.Fatal("correct password must verify")
			}

			ok, err = store.VerifyPassword(ctx, record, "wrong password")
			if err != nil {
				t.Fatalf("VerifyPassword failed: %v", err)
			}
			if ok {
				t.Fatal("wrong password must not verify")
			}
		})
	}
}

func TestUnknownIdentifier(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.FindByIdentifier(ctx, "nobody"); !errors.Is(err, authcore.ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
		})
	}
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if err := store.RecordFailedAttempt(ctx, "alice"); err != nil {
					t.Fatalf("RecordFailedAttempt failed: %v", err)
				}
			}

			record, err := store.FindByIdentifier(ctx, "alice")
			if err != nil {
				t.Fatalf("FindByIdentifier failed: %v", err)
			}
			if !record.Locked {
				t.Fatal("account must be locked after max attempts")
			}

			if err := store.ResetFailedAttempts(ctx, "u1"); err != nil {
				t.Fatalf("ResetFailedAttempts failed: %v", err)
			}
			record, err = store.FindByIdentifier(ctx, "alice")
			if err != nil {
				t.Fatalf("FindByIdentifier failed: %v", err)
			}
			if record.Locked {
				t.Fatal("reset must clear the lockout")
			}
		})
	}
}

func TestAttemptsBelowMaxDoNotLock(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				if err := store.RecordFailedAttempt(ctx, "alice"); err != nil {
					t.Fatalf("RecordFailedAttempt failed: %v", err)
				}
			}
			record, err := store.FindByIdentifier(ctx, "alice")
			if err != nil {
				t.Fatalf("FindByIdentifier failed: %v", err)
			}
			if record.Locked {
				t.Fatal("two of three attempts must not lock")
			}
		})
	}
}

func TestRedisLockoutExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisWithUser(t)

	for i := 0; i < 3; i++ {
		if err := store.RecordFailedAttempt(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailedAttempt failed: %v", err)
		}
	}
	record, err := store.FindByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByIdentifier failed: %v", err)
	}
	if !record.Locked {
		t.Fatal("expected lockout")
	}

	mr.FastForward(2 * time.Minute)

	record, err = store.FindByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByIdentifier failed: %v", err)
	}
	if record.Locked {
		t.Fatal("lockout must expire with the counter key")
	}
}

func TestMemoryLockoutExpires(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.LockoutDuration = 10 * time.Millisecond
	store, err := NewMemory(cfg)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if _, err := store.Add("u1", "alice", "", "hunter2hunter2", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.RecordFailedAttempt(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailedAttempt failed: %v", err)
		}
	}
	time.Sleep(25 * time.Millisecond)

	record, err := store.FindByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByIdentifier failed: %v", err)
	}
	if record.Locked {
		t.Fatal("lockout must expire")
	}
}
