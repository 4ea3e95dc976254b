package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means the budget for the current window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps counter storage failures.
	ErrUnavailable = errors.New("rate limiter storage unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	KeyPrefix string

	LoginMaxAttempts int
	LoginWindow      time.Duration

	CodeMaxRequests int
	CodeWindow      time.Duration
}

// DefaultConfig returns the login budget of 5 attempts per 15 minutes per
// client and 5 code dispatches per hour per email.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:        "authsvc",
		LoginMaxAttempts: 5,
		LoginWindow:      15 * time.Minute,
		CodeMaxRequests:  5,
		CodeWindow:       time.Hour,
	}
}

// Decision describes the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Limit      int
}

// Limiter enforces fixed-window budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "authsvc"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowLogin counts one login attempt from ip. Every attempt counts,
// successful or not.
func (l *Limiter) AllowLogin(ctx context.Context, ip string) (Decision, error) {
	if ip == "" {
		ip = "unknown"
	}
	return l.allow(ctx, l.loginIPKey(ip), l.config.LoginMaxAttempts, l.config.LoginWindow)
}

// AllowCodeRequest counts one verification or reset code dispatch for email.
func (l *Limiter) AllowCodeRequest(ctx context.Context, email string) (Decision, error) {
	return l.allow(ctx, l.codeKey(strings.ToLower(email)), l.config.CodeMaxRequests, l.config.CodeWindow)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.KeyPrefix + ":ali:" + ip
}

func (l *Limiter) codeKey(email string) string {
	return l.config.KeyPrefix + ":acr:" + email
}

func (l *Limiter) allow(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	if max <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: max}, nil
	}

	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Limit: max, Remaining: max - int(count)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count <= int64(max) {
		d.Allowed = true
		return d, nil
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		d.RetryAfter = ttl
	}
	return d, ErrRateLimited
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
