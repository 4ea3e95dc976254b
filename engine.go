package authsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authsvc/internal/flows"
	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/jwt"
	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Engine runs every auth flow. It is safe for concurrent use after
// [Builder.Build].
type Engine struct {
	config    Config
	users     UserStore
	mailer    Mailer
	grants    *session.Store
	limiter   *rate.Limiter
	passwords *password.Argon2
	totp      *totpManager
	tokens    *jwt.Manager
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	flows     flows.Deps
	now       func() time.Time

	dummyHash string
	federated singleflight.Group
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// AllowLogin counts one login attempt from ip against the per-client budget.
// It returns rate.ErrRateLimited with a populated decision once the budget is
// spent; HTTP middleware calls it before Login.
func (e *Engine) AllowLogin(ctx context.Context, ip string) (rate.Decision, error) {
	d, err := e.limiter.AllowLogin(ctx, ip)
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
	}
	return d, err
}

// Ping checks Redis and the user store. It is meant for readiness probes.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.grants == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if _, err := e.grants.Ping(ctx); err != nil {
		return dependencyError(ErrStoreUnavailable, err)
	}
	if err := e.users.Ping(ctx); err != nil {
		return dependencyError(ErrStoreUnavailable, err)
	}
	return nil
}

// ActiveSessionCount returns the number of live refresh grants for userID.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	n, err := e.grants.ActiveGrantCount(ctx, userID)
	if err != nil {
		return 0, dependencyError(ErrStoreUnavailable, err)
	}
	return n, nil
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	meta := RequestMetaFrom(ctx)
	if meta.ClientIP != "" {
		attrs = append(attrs, attribute.String("client.address", meta.ClientIP))
	}
	if meta.UserAgent != "" {
		attrs = append(attrs, attribute.String("user_agent.original", meta.UserAgent))
	}
	return e.tracer.Start(ctx, "authsvc."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("authsvc.error_kind", KindOf(err).String()))
		if KindOf(err) == KindDependency || KindOf(err) == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// storeError passes user store sentinels through and wraps anything else as
// a dependency failure.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidOrExpiredCode),
		errors.Is(err, ErrTOTPAlreadyEnabled),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return dependencyError(ErrStoreUnavailable, err)
	}
}

func (e *Engine) logDependency(ctx context.Context, op string, err error) {
	e.logger.LogAttrs(ctx, slog.LevelError, "dependency failure",
		slog.String("op", op),
		slog.String("client_ip", RequestMetaFrom(ctx).ClientIP),
		slog.String("error", err.Error()),
	)
}

// issuePair mints an access/refresh pair for u and persists the refresh grant.
func (e *Engine) issuePair(ctx context.Context, u *User) (*TokenPair, error) {
	pair, err := e.mintPair(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}

	now := e.now()
	grant := &session.Grant{
		UserID:    u.ID,
		Role:      string(u.Role),
		CreatedAt: now.Unix(),
		ExpiresAt: pair.RefreshExpiresAt.Unix(),
	}
	if err := e.grants.Save(ctx, pair.RefreshToken, grant, pair.RefreshExpiresAt.Sub(now)); err != nil {
		e.logDependency(ctx, "issuePair", err)
		return nil, dependencyError(ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionCreated)

	out := toTokenPair(pair)
	out.User = u.View()
	return out, nil
}

func (e *Engine) mintPair(userID, role string) (flows.IssuedPair, error) {
	access, accessExp, err := e.tokens.CreateAccess(userID, role)
	if err != nil {
		return flows.IssuedPair{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, refreshExp, err := e.tokens.CreateRefresh(userID, role)
	if err != nil {
		return flows.IssuedPair{}, fmt.Errorf("mint refresh token: %w", err)
	}
	return flows.IssuedPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func toTokenPair(p flows.IssuedPair) *TokenPair {
	return &TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		TokenType:        "Bearer",
	}
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Refresh: flows.RefreshDeps{
			ParseRefresh: func(token string) (string, error) {
				claims, err := e.tokens.ParseRefresh(token)
				if err != nil {
					return "", err
				}
				return claims.UID, nil
			},
			LoadRole: func(ctx context.Context, userID string) (string, error) {
				u, err := e.users.GetUserByID(ctx, userID)
				if err != nil {
					return "", err
				}
				return string(u.Role), nil
			},
			IssuePair:     e.mintPair,
			Grants:        e.grants,
			Now:           e.now,
			GrantNotFound: session.ErrGrantNotFound,
			OwnerMismatch: session.ErrGrantOwnerMismatch,
		},
		Validate: flows.ValidateDeps{
			ParseAccess: func(token string) (flows.ValidatedAccess, error) {
				claims, err := e.tokens.ParseAccess(token)
				if err != nil {
					return flows.ValidatedAccess{}, err
				}
				return flows.ValidatedAccess{
					UserID:    claims.UID,
					Role:      claims.Role,
					TokenID:   claims.ID,
					ExpiresAt: claims.ExpiresAt.Time,
				}, nil
			},
			Blacklist: e.grants,
		},
		Logout: flows.LogoutDeps{
			DecodeAccess: func(token string) (string, time.Time, error) {
				claims, err := e.tokens.DecodeUnverified(token)
				if err != nil {
					return "", time.Time{}, err
				}
				// ParseAccess honours the leeway, so the entry must outlive it.
				return claims.UID, claims.ExpiresAt.Time.Add(e.config.JWT.Leeway), nil
			},
			Grants: e.grants,
		},
	}
}
