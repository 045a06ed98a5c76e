package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// Claims is the verified claim set of a parsed token.
type Claims = jwt.Claims

// UserRecord is the credential-store view of an account. PasswordHash is
// opaque to the engine; VerifyPassword interprets it.
type UserRecord struct {
	UserID       string
	Identifier   string
	Email        string
	PasswordHash string
	Permissions  []string
	Locked       bool
}

// UserInfo is the identity an OAuth provider vouches for.
type UserInfo struct {
	UserID      string
	Email       string
	Permissions []string
}

// LoginResult carries everything a transport layer needs after a
// successful authentication.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	UserID       string
	Email        string
	Permissions  []string
}

// TokenPair is the result of a refresh rotation. Both tokens are brand
// new; the presented refresh token is spent.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserStore is the credential backend. Implementations own lockout
// policy: FindByIdentifier reports Locked, RecordFailedAttempt and
// ResetFailedAttempts maintain the counters behind it.
//
// FindByIdentifier returns ErrUserNotFound for unknown identifiers; any
// other error is treated as a dependency failure and counts against the
// "credential-store" circuit.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	VerifyPassword(ctx context.Context, record UserRecord, password string) (bool, error)
	RecordFailedAttempt(ctx context.Context, identifier string) error
	ResetFailedAttempts(ctx context.Context, userID string) error
}

// OAuthVerifier exchanges a provider token for a verified identity.
// A rejected token is ErrInvalidCredentials; anything else is a
// dependency failure counted against the "oauth-provider" circuit.
type OAuthVerifier interface {
	Exchange(ctx context.Context, providerToken string) (UserInfo, error)
}

// ServiceVerifier cross-checks that a service identity is known and
// active. Consulted by ValidateServiceToken outside development.
type ServiceVerifier interface {
	VerifyService(ctx context.Context, serviceID string) (bool, error)
}
