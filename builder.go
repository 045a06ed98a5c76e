package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/breaker"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/session"
)

// Builder assembles an Engine through explicit dependency injection.
// With a Redis client the revocation and session stores are shared
// across processes; without one they default to in-memory stores.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userStore       UserStore
	oauthVerifier   OAuthVerifier
	serviceVerifier ServiceVerifier
	auditSink       AuditSink
	logger          zerolog.Logger
	loggerSet       bool

	built bool
}

// New starts a builder with defaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the revocation and session stores with Redis. Required
// for multi-process deployments; single-process setups may omit it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(us UserStore) *Builder {
	b.userStore = us
	return b
}

func (b *Builder) WithOAuthVerifier(ov OAuthVerifier) *Builder {
	b.oauthVerifier = ov
	return b
}

func (b *Builder) WithServiceVerifier(sv ServiceVerifier) *Builder {
	b.serviceVerifier = sv
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for warn-path events (store failures,
// breaker transitions, audit overflow). Default is zerolog.Nop.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	b.loggerSet = true
	return b
}

// Build validates the configuration and wires the Engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		ServiceTTL:    cfg.JWT.ServiceTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var revStore revocation.Store
	var sessStore session.Store
	if b.redis != nil {
		revStore = revocation.NewRedis(b.redis, "arv")
		sessStore = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	} else {
		revStore = revocation.NewMemory()
		sessStore = session.NewMemoryStore()
	}

	sessionTTL := cfg.Session.TTL
	if sessionTTL <= 0 {
		sessionTTL = cfg.JWT.RefreshTTL
	}

	logger := zerolog.Nop()
	if b.loggerSet {
		logger = b.logger.With().Str("component", "authcore").Logger()
	}

	engine := &Engine{
		config:     cfg,
		jwt:        jm,
		revocation: revStore,
		sessions:   session.NewRegistry(sessStore, sessionTTL),
		users:      b.userStore,
		oauth:      b.oauthVerifier,
		services:   b.serviceVerifier,
		logger:     logger,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.breakers = breaker.NewSet(
		breaker.WithThreshold(cfg.Breaker.Threshold),
		breaker.WithOnOpen(func(name string, failures int) {
			engine.metrics.Inc(MetricBreakerOpened)
			engine.logger.Warn().
				Str("breaker", name).
				Int("failures", failures).
				Msg("circuit breaker opened")
			engine.emitAudit(AuditEvent{
				EventType: AuditBreakerOpen,
				Success:   false,
				Metadata:  map[string]string{"breaker": name},
			})
		}),
	)

	b.built = true

	return engine, nil
}
