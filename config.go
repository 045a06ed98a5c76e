package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// Environment selects environment-dependent behavior; today that is the
// service-token cross-check, which development skips.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config defines engine behavior. Instances are configured once before
// Build and treated as immutable afterwards.
type Config struct {
	Service     string
	Environment string

	JWT      JWTConfig
	Session  SessionConfig
	Breaker  BreakerConfig
	External ExternalConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig mirrors jwt.Config at the engine boundary.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ServiceTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig controls the session registry.
type SessionConfig struct {
	RedisPrefix string
	// TTL bounds a session's life on backends with expiry. Zero means
	// the refresh TTL is used.
	TTL time.Duration
}

// BreakerConfig controls the per-dependency circuit breakers.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens a circuit.
	Threshold int
}

// ExternalConfig bounds calls to collaborators (UserStore, OAuth
// provider, service verifier).
type ExternalConfig struct {
	CallTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Service:     "authcore",
		Environment: EnvDevelopment,
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			ServiceTTL:    5 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "authcore",
		},
		Session: SessionConfig{
			RedisPrefix: "as",
		},
		Breaker: BreakerConfig{
			Threshold: 5,
		},
		External: ExternalConfig{
			CallTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// PresetDevelopment returns defaults suitable for local work: hs256 with
// the given key, audit and metrics on, relaxed environment.
func PresetDevelopment(signingKey []byte) Config {
	cfg := defaultConfig()
	cfg.Environment = EnvDevelopment
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = cloneBytes(signingKey)
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

// PresetProduction returns hardened defaults: ed25519 keys, short access
// tokens, audit and metrics with latency histograms.
func PresetProduction(privateKey, publicKey []byte) Config {
	cfg := defaultConfig()
	cfg.Environment = EnvProduction
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = cloneBytes(privateKey)
	cfg.JWT.PublicKey = cloneBytes(publicKey)
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found. Key material
// checks are delegated to jwt.NewManager at build time.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.ServiceTTL <= 0 {
		return errors.New("JWT ServiceTTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519, jwt.MethodHS256:
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}

	if c.Breaker.Threshold <= 0 {
		return errors.New("Breaker Threshold must be > 0")
	}

	if c.External.CallTimeout <= 0 {
		return errors.New("External CallTimeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return errors.New("Environment must be 'development' or 'production'")
	}

	if c.Environment == EnvProduction {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("production requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("production requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod == string(jwt.MethodHS256) && len(c.JWT.PrivateKey) < 32 {
			return errors.New("production requires hs256 key length >= 256 bits")
		}
	}

	return nil
}
