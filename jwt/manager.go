package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm the Manager signs and
// verifies with. Only the configured algorithm is ever accepted on parse.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// TokenKind discriminates the three token classes the engine issues.
// A token parsed with the wrong expected kind is invalid.
type TokenKind string

const (
	// KindAccess is a short-lived bearer token for request authorization.
	KindAccess TokenKind = "access"
	// KindRefresh is a long-lived single-use token exchanged for a new pair.
	KindRefresh TokenKind = "refresh"
	// KindService is a short-lived service-to-service identity token.
	KindService TokenKind = "service"
)

// ErrTokenInvalid is the single error returned for every parse failure:
// bad signature, wrong algorithm, expired, wrong kind, missing subject,
// malformed structure. Callers cannot branch on the failure mode.
var ErrTokenInvalid = errors.New("invalid token")

// Config holds the signing material and per-kind lifetimes for a Manager.
// Configure once during initialization and treat as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ServiceTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Manager signs and parses the engine's tokens. It is pure: no I/O, no
// shared mutable state, safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the decoded payload of an engine token. Subject, ID (jti),
// IssuedAt and ExpiresAt live in the embedded RegisteredClaims.
type Claims struct {
	Kind        TokenKind `json:"knd"`
	Email       string    `json:"email,omitempty"`
	Permissions []string  `json:"perms,omitempty"`
	SessionID   string    `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenID returns the jti embedded at issuance.
func (c *Claims) TokenID() string {
	return c.ID
}

// RemainingLife returns the time until expiry, clamped at zero.
func (c *Claims) RemainingLife(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ServiceTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token of the given kind for subject. Every call embeds a
// fresh random jti, so two tokens issued back-to-back for identical inputs
// are distinct strings with distinct token IDs.
func (m *Manager) Issue(kind TokenKind, subject, email string, permissions []string, sessionID string) (string, error) {
	if subject == "" {
		return "", errors.New("subject required")
	}

	ttl, err := m.ttlFor(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		Kind:        kind,
		Email:       email,
		Permissions: permissions,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(m.method(), claims)

	signKey, err := m.signKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Parse verifies tokenStr against the configured algorithm and key, and
// checks expiry, issuer, subject, jti presence, and kind. All failure
// modes collapse to ErrTokenInvalid.
func (m *Manager) Parse(tokenStr string, expectedKind TokenKind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, ErrTokenInvalid
		}
		return m.verifyKey()
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != expectedKind {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) ttlFor(kind TokenKind) (time.Duration, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessTTL, nil
	case KindRefresh:
		return m.config.RefreshTTL, nil
	case KindService:
		return m.config.ServiceTTL, nil
	default:
		return 0, errors.New("unsupported token kind")
	}
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
