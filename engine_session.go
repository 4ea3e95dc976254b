package authsvc

import (
	"context"
	"errors"

	"github.com/MrEthical07/authsvc/internal/flows"
	"github.com/MrEthical07/authsvc/session"
	"go.opentelemetry.io/otel/attribute"
)

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed; presenting it again returns [ErrInvalidToken]. The new access
// token carries the user's current role.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, invalidField("refreshToken", "is required")
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		span.SetAttributes(attribute.String("enduser.id", res.UserID))
		if res.Replaced != nil {
			span.SetAttributes(attribute.Int64("authsvc.grant.age_seconds", e.now().Unix()-res.Replaced.CreatedAt))
		}
		return toTokenPair(res.Pair), nil
	case flows.RefreshFailureGrantNotFound:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidToken
	case flows.RefreshFailureUserLookup:
		if !errors.Is(res.Err, ErrUserNotFound) {
			return nil, storeError(res.Err)
		}
	case flows.RefreshFailureRotate:
		if errors.Is(res.Err, session.ErrRedisUnavailable) {
			e.logDependency(ctx, "Refresh", res.Err)
			return nil, dependencyError(ErrStoreUnavailable, res.Err)
		}
	case flows.RefreshFailureIssue:
		return nil, res.Err
	}

	e.metricInc(MetricRefreshFailure)
	return nil, ErrInvalidToken
}

// Logout blacklists accessToken for the rest of its lifetime and deletes the
// grant of refreshToken when it is non-empty and belongs to the same user.
// A malformed access token returns [ErrInvalidToken] and changes nothing.
//
// accessToken is expected to have passed [Engine.ValidateAccess]; Logout only
// decodes it to find the owner and expiry.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	res := flows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureDecode:
		return ErrInvalidToken
	case flows.LogoutFailureGrant:
		if errors.Is(res.Err, session.ErrGrantOwnerMismatch) {
			return ErrInvalidToken
		}
		fallthrough
	default:
		e.logDependency(ctx, "Logout", res.Err)
		return dependencyError(ErrStoreUnavailable, res.Err)
	}

	e.metricInc(MetricLogout)
	e.metrics.Add(MetricSessionInvalidated, uint64(res.GrantsRemoved))
	return nil
}

// LogoutAll revokes every refresh grant of userID. Access tokens already
// issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (err error) {
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer func() { endSpan(span, err) }()

	if err := e.revokeAll(ctx, userID); err != nil {
		return err
	}
	e.metricInc(MetricLogoutAll)
	return nil
}
