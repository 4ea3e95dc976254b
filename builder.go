package authsvc

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/jwt"
	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authsvc"

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// then discarded. A Builder can be built only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users   UserStore
	mailer  Mailer
	limiter *rate.Limiter

	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine policy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for refresh grants, the blacklist and rate
// limiting. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user persistence port. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithMailer sets the outbound mail port. Required.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithRateLimiter shares a limiter with the transport layer. When unset,
// Build creates one with [rate.DefaultConfig] under the session prefix.
func (b *Builder) WithRateLimiter(l *rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// WithLogger sets the logger for dependency failures. Defaults to
// [slog.Default].
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithTracerProvider sets the span source. Defaults to the global provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Build may return an error when a required dependency is missing or the
// configuration is invalid. It performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:  cfg,
		users:   b.users,
		mailer:  b.mailer,
		logger:  logger.With(slog.String("component", "authsvc")),
		tracer:  tp.Tracer(tracerName),
		metrics: NewMetrics(cfg.Metrics),
		totp:    newTOTPManager(cfg.TOTP),
		now:     now,
	}

	// -------- SESSION STORE --------
	engine.grants = session.NewStore(b.redis, cfg.Session.RedisPrefix).WithClock(now)

	engine.limiter = b.limiter
	if engine.limiter == nil {
		rcfg := rate.DefaultConfig()
		rcfg.KeyPrefix = cfg.Session.RedisPrefix
		engine.limiter = rate.New(b.redis, rcfg)
	}

	// -------- PASSWORDS --------
	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}
	engine.passwords = ph

	// A real hash to verify against when the account does not exist, so that
	// unknown-email and wrong-password logins cost the same.
	dummy, err := ph.Hash("authsvc-timing-equaliser")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessKey:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshKey: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

func cloneConfig(in Config) Config {
	out := in
	out.JWT.AccessSecret = cloneBytes(in.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(in.JWT.RefreshSecret)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
