package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/breaker"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/session"
)

// Breaker names, one per external dependency.
const (
	BreakerCredentialStore  = "credential-store"
	BreakerOAuthProvider    = "oauth-provider"
	BreakerServiceValidator = "service-validator"
)

// Engine is the authentication core. It owns token issuance, refresh
// rotation, validation, and session lifecycle; transports (HTTP, gRPC)
// and authorization decisions live outside.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	config Config

	jwt        *jwt.Manager
	revocation revocation.Store
	sessions   *session.Registry
	breakers   *breaker.Set

	users    UserStore
	oauth    OAuthVerifier
	services ServiceVerifier

	audit   *auditDispatcher
	metrics *Metrics
	logger  zerolog.Logger
}

// Login authenticates identifier/password and establishes a session.
//
// Unknown identifiers and wrong passwords both return
// ErrInvalidCredentials; a locked account returns ErrAccountLocked; a
// down or circuit-open credential store returns ErrServiceUnavailable.
func (e *Engine) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	var record UserRecord
	found := false
	err := e.callExternal(ctx, BreakerCredentialStore, func(cctx context.Context) error {
		rec, err := e.users.FindByIdentifier(cctx, identifier)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil
			}
			return err
		}
		record = rec
		found = true
		return nil
	})
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	if !found {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(AuditEvent{
			EventType: AuditLoginFailure,
			IP:        clientIPFromContext(ctx),
			Error:     "unknown identifier",
		})
		return nil, ErrInvalidCredentials
	}

	if record.Locked {
		e.metrics.Inc(MetricLoginLocked)
		e.emitAudit(AuditEvent{
			EventType: AuditLoginLocked,
			UserID:    record.UserID,
			IP:        clientIPFromContext(ctx),
		})
		return nil, ErrAccountLocked
	}

	var passwordOK bool
	err = e.callExternal(ctx, BreakerCredentialStore, func(cctx context.Context) error {
		ok, err := e.users.VerifyPassword(cctx, record, password)
		if err != nil {
			return err
		}
		passwordOK = ok
		return nil
	})
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	if !passwordOK {
		if err := e.users.RecordFailedAttempt(ctx, identifier); err != nil {
			e.logger.Warn().Err(err).Msg("failed attempt bookkeeping failed")
		}
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(AuditEvent{
			EventType: AuditLoginFailure,
			UserID:    record.UserID,
			IP:        clientIPFromContext(ctx),
			Error:     "wrong password",
		})
		return nil, ErrInvalidCredentials
	}

	if err := e.users.ResetFailedAttempts(ctx, record.UserID); err != nil {
		e.logger.Warn().Err(err).Msg("failed attempt reset failed")
	}

	result, err := e.establishSession(ctx, UserInfo{
		UserID:      record.UserID,
		Email:       record.Email,
		Permissions: record.Permissions,
	}, AuditLoginSuccess)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	return result, nil
}

// Refresh spends a refresh token and returns a brand-new token pair.
//
// The presented token is single-use: of N concurrent calls with the
// same token exactly one succeeds, the rest get ErrTokenReused. Callers
// must never retry a failed Refresh with the same token; the claim is
// made before the new pair exists, so the token is spent either way.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwt.Parse(refreshToken, jwt.KindRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}

	// Blacklist lookups fail open: a dead revocation store must not
	// lock every user out of refresh.
	denied, err := e.revocation.IsBlacklisted(ctx, claims.TokenID())
	if err != nil {
		e.logger.Warn().Err(err).Msg("blacklist lookup failed, failing open")
	} else if denied {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}

	// The single-use claim fails closed: when first use cannot be
	// proven, the token is treated as already spent.
	claimed, err := e.revocation.MarkRefreshUsed(ctx, claims.TokenID(), claims.RemainingLife(time.Now()))
	if err != nil || !claimed {
		if err != nil {
			e.logger.Warn().Err(err).Msg("refresh claim failed, failing closed")
		}
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emitAudit(AuditEvent{
			EventType: AuditRefreshReuse,
			UserID:    claims.Subject,
			SessionID: claims.SessionID,
			IP:        clientIPFromContext(ctx),
		})
		return nil, ErrTokenReused
	}

	// Identity rides the verified token itself; nothing between the
	// claim above and issuance touches the network.
	access, err := e.jwt.Issue(jwt.KindAccess, claims.Subject, claims.Email, claims.Permissions, claims.SessionID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}
	refresh, err := e.jwt.Issue(jwt.KindRefresh, claims.Subject, claims.Email, claims.Permissions, claims.SessionID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(AuditEvent{
		EventType: AuditRefreshSuccess,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Validate checks an access token and returns its claims. It answers
// only "who is this"; authorization decisions belong to the caller.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()

	claims, err := e.jwt.Parse(accessToken, jwt.KindAccess)
	if err != nil {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	denied, err := e.revocation.IsBlacklisted(ctx, claims.TokenID())
	if err != nil {
		e.logger.Warn().Err(err).Msg("blacklist lookup failed, failing open")
	} else if denied {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	e.metrics.Inc(MetricValidateSuccess)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	return claims, nil
}

// Logout revokes what it can and never fails: blacklists the jtis of
// whichever presented tokens still parse, removes the session named by
// a sid claim, and otherwise invalidates all sessions of the token's
// subject. Malformed input is ignored.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil {
		return nil
	}

	var userID, sessionID string
	if claims, err := e.jwt.Parse(accessToken, jwt.KindAccess); err == nil {
		e.blacklistClaims(ctx, claims)
		userID = claims.Subject
		sessionID = claims.SessionID
	}
	if claims, err := e.jwt.Parse(refreshToken, jwt.KindRefresh); err == nil {
		e.blacklistClaims(ctx, claims)
		if userID == "" {
			userID = claims.Subject
		}
		if sessionID == "" {
			sessionID = claims.SessionID
		}
	}

	switch {
	case sessionID != "":
		removed, err := e.sessions.Delete(ctx, sessionID)
		if err != nil {
			e.logger.Warn().Err(err).Str("session", sessionID).Msg("session delete failed during logout")
		} else if removed {
			e.metrics.Inc(MetricSessionInvalidated)
		}
	case userID != "":
		if _, err := e.sessions.InvalidateAllForUser(ctx, userID); err != nil {
			e.logger.Warn().Err(err).Msg("session invalidation failed during logout")
		}
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(AuditEvent{
		EventType: AuditLogout,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})
	return nil
}

// LogoutAll invalidates every session of userID. Access tokens already
// issued remain valid until expiry unless individually blacklisted.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return nil
	}

	removed, err := e.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emitAudit(AuditEvent{
		EventType: AuditLogoutAll,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   true,
		Metadata:  map[string]string{"sessions": fmt.Sprintf("%d", removed)},
	})
	return nil
}

// Breakers exposes the circuit registry for admin surfaces (status and
// reset endpoints).
func (e *Engine) Breakers() *breaker.Set {
	if e == nil {
		return nil
	}
	return e.breakers
}

// Metrics exposes the engine counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.Metrics().Snapshot()
}

// Close drains the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// establishSession creates a session and issues the initial token pair.
// Shared by password and OAuth logins.
func (e *Engine) establishSession(ctx context.Context, info UserInfo, eventType string) (*LoginResult, error) {
	var data map[string]string
	if ip := clientIPFromContext(ctx); ip != "" {
		data = map[string]string{"ip": ip}
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if data == nil {
			data = map[string]string{}
		}
		data["ua"] = ua
	}

	sessionID, err := e.sessions.Create(ctx, info.UserID, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	e.metrics.Inc(MetricSessionCreated)

	access, err := e.jwt.Issue(jwt.KindAccess, info.UserID, info.Email, info.Permissions, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwt.Issue(jwt.KindRefresh, info.UserID, info.Email, info.Permissions, sessionID)
	if err != nil {
		return nil, err
	}

	e.emitAudit(AuditEvent{
		EventType: eventType,
		UserID:    info.UserID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		UserID:       info.UserID,
		Email:        info.Email,
		Permissions:  info.Permissions,
	}, nil
}

// callExternal runs fn against a named dependency: fast-fail when the
// circuit is open, bounded by the configured call timeout, outcome
// recorded on the circuit. Errors are mapped to ErrServiceUnavailable
// before they cross the API.
func (e *Engine) callExternal(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if e.breakers.IsOpen(name) {
		e.metrics.Inc(MetricBreakerRejected)
		return fmt.Errorf("%w: circuit %s open", ErrServiceUnavailable, name)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.External.CallTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		e.breakers.RecordFailure(name)
		e.logger.Warn().Err(err).Str("dependency", name).Msg("dependency call failed")
		e.emitAudit(AuditEvent{
			EventType: AuditDependencyFailure,
			Error:     err.Error(),
			Metadata:  map[string]string{"dependency": name},
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrServiceUnavailable, ErrExternalTimeout)
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	e.breakers.RecordSuccess(name)
	return nil
}

func (e *Engine) blacklistClaims(ctx context.Context, claims *Claims) {
	ttl := claims.RemainingLife(time.Now())
	if ttl <= 0 {
		return
	}
	if err := e.revocation.Blacklist(ctx, claims.TokenID(), ttl); err != nil {
		e.logger.Warn().Err(err).Msg("blacklist write failed")
	}
}
