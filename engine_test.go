package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/userstore"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func fastPasswordParams() password.Params {
	return password.Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func seededUsers(t *testing.T) *userstore.Memory {
	t.Helper()
	users, err := userstore.NewMemory(userstore.Config{
		MaxAttempts:     3,
		LockoutDuration: time.Minute,
		Password:        fastPasswordParams(),
	})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if _, err := users.Add("u1", "alice", "u1@x.com", "correct horse battery", []string{"read", "write"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return users
}

func newTestEngine(t *testing.T, users authcore.UserStore) *authcore.Engine {
	t.Helper()
	engine, err := authcore.New().
		WithConfig(authcore.PresetDevelopment(testSigningKey)).
		WithUserStore(users).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestLoginIssuesTokensAndSession(t *testing.T) {
	ctx := authcore.WithClientIP(context.Background(), "10.1.2.3")
	engine := newTestEngine(t, seededUsers(t))

	result, err := engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	if result.AccessToken == result.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if result.SessionID == "" {
		t.Fatal("missing session id")
	}

	claims, err := engine.Validate(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "u1@x.com" {
		t.Fatalf("unexpected identity: %s / %s", claims.Subject, claims.Email)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "read" || claims.Permissions[1] != "write" {
		t.Fatalf("unexpected permissions: %v", claims.Permissions)
	}
	if claims.SessionID != result.SessionID {
		t.Fatal("access token must carry the session id")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	_, unknownErr := engine.Login(ctx, "nobody", "whatever password")
	_, wrongErr := engine.Login(ctx, "alice", "wrong password entirely")

	if !errors.Is(unknownErr, authcore.ErrInvalidCredentials) {
		t.Fatalf("unknown identifier: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, authcore.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error text leaks user existence: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	for i := 0; i < 3; i++ {
		if _, err := engine.Login(ctx, "alice", "wrong password entirely"); !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := engine.Login(ctx, "alice", "correct horse battery"); !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

type failingUserStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingUserStore) FindByIdentifier(context.Context, string) (authcore.UserRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return authcore.UserRecord{}, errors.New("connection refused")
}

func (f *failingUserStore) VerifyPassword(context.Context, authcore.UserRecord, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (f *failingUserStore) RecordFailedAttempt(context.Context, string) error { return nil }
func (f *failingUserStore) ResetFailedAttempts(context.Context, string) error { return nil }

func (f *failingUserStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestLoginBreakerOpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	store := &failingUserStore{}
	engine := newTestEngine(t, store)

	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, "alice", "pw-irrelevant"); !errors.Is(err, authcore.ErrServiceUnavailable) {
			t.Fatalf("attempt %d: expected ErrServiceUnavailable, got %v", i+1, err)
		}
	}

	if !engine.Breakers().IsOpen(authcore.BreakerCredentialStore) {
		t.Fatal("credential-store circuit must be open after five failures")
	}

	before := store.callCount()
	if _, err := engine.Login(ctx, "alice", "pw-irrelevant"); !errors.Is(err, authcore.ErrServiceUnavailable) {
		t.Fatalf("expected fast-fail ErrServiceUnavailable, got %v", err)
	}
	if store.callCount() != before {
		t.Fatal("open circuit must not reach the store")
	}

	engine.Breakers().Reset(authcore.BreakerCredentialStore)
	if engine.Breakers().IsOpen(authcore.BreakerCredentialStore) {
		t.Fatal("Reset must close the circuit")
	}
}

func TestRefreshRotatesAndPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	result, err := engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	pair, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.AccessToken == result.AccessToken || pair.RefreshToken == result.RefreshToken {
		t.Fatal("refresh must issue brand-new tokens")
	}

	claims, err := engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "u1@x.com" {
		t.Fatalf("identity lost across refresh: %s / %s", claims.Subject, claims.Email)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "read" || claims.Permissions[1] != "write" {
		t.Fatalf("permissions lost across refresh: %v", claims.Permissions)
	}

	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, authcore.ErrTokenReused) {
		t.Fatalf("spent token: expected ErrTokenReused, got %v", err)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	result, err := engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const workers = 10
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Refresh(ctx, result.RefreshToken)
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	winners, reused := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, authcore.ErrTokenReused):
			reused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("want exactly 1 winner, got %d", winners)
	}
	if reused != workers-1 {
		t.Fatalf("want %d reuse rejections, got %d", workers-1, reused)
	}
}

func TestRefreshRejectsNonRefreshInput(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	result, err := engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"access token": result.AccessToken,
	} {
		if _, err := engine.Refresh(ctx, token); !errors.Is(err, authcore.ErrTokenInvalid) {
			t.Errorf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	result, err := engine.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, result.AccessToken, result.RefreshToken); err != nil {
		t.Fatalf("Logout must not fail: %v", err)
	}

	if _, err := engine.Validate(ctx, result.AccessToken); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("blacklisted access token: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("blacklisted refresh token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogoutIgnoresMalformedInput(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, seededUsers(t))

	if err := engine.Logout(ctx, "garbage", ""); err != nil {
		t.Fatalf("Logout must swallow malformed input, got %v", err)
	}
	if err := engine.Logout(ctx, "", ""); err != nil {
		t.Fatalf("Logout with empty input must succeed, got %v", err)
	}
}

func TestLogoutAllEmitsSessionCount(t *testing.T) {
	ctx := context.Background()
	sink := authcore.NewChannelSink(64)
	users := seededUsers(t)

	engine, err := authcore.New().
		WithConfig(authcore.PresetDevelopment(testSigningKey)).
		WithUserStore(users).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "alice", "correct horse battery"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
	}

	if err := engine.LogoutAll(ctx, "u1"); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	engine.Close()

	var logoutAll *authcore.AuditEvent
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == authcore.AuditLogoutAll {
				logoutAll = &event
			}
			continue
		default:
		}
		break
	}
	if logoutAll == nil {
		t.Fatal("expected logout_all audit event")
	}
	if logoutAll.Metadata["sessions"] != "2" {
		t.Fatalf("want 2 invalidated sessions, got %q", logoutAll.Metadata["sessions"])
	}
}

// Full lifecycle: login, validate, refresh, old refresh rejected,
// logout, validate fails. Runs against both backends.
func TestEndToEndLifecycle(t *testing.T) {
	backends := map[string]func(*testing.T, *authcore.Builder) *authcore.Builder{
		"memory": func(_ *testing.T, b *authcore.Builder) *authcore.Builder { return b },
		"redis": func(t *testing.T, b *authcore.Builder) *authcore.Builder {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis run failed: %v", err)
			}
			t.Cleanup(mr.Close)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return b.WithRedis(rdb)
		},
	}

	for name, wire := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			builder := authcore.New().
				WithConfig(authcore.PresetDevelopment(testSigningKey)).
				WithUserStore(seededUsers(t))
			engine, err := wire(t, builder).Build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			t.Cleanup(engine.Close)

			result, err := engine.Login(ctx, "alice", "correct horse battery")
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}

			if _, err := engine.Validate(ctx, result.AccessToken); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}

			pair, err := engine.Refresh(ctx, result.RefreshToken)
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}

			if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, authcore.ErrTokenReused) {
				t.Fatalf("old refresh token: expected ErrTokenReused, got %v", err)
			}

			if err := engine.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
				t.Fatalf("Logout failed: %v", err)
			}

			if _, err := engine.Validate(ctx, pair.AccessToken); !errors.Is(err, authcore.ErrTokenInvalid) {
				t.Fatalf("post-logout validate: expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}
