package authsvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authsvc/internal/flows"
	"github.com/MrEthical07/authsvc/permission"
	"go.opentelemetry.io/otel/attribute"
)

// Login authenticates with email and password and, when the user has an
// enabled second factor, a TOTP code.
//
// An unknown email, a wrong password and a federated-only account all return
// [ErrInvalidCredentials] after the same amount of hashing work. A missing
// TOTP code returns [ErrTOTPRequired]; a wrong or replayed one [ErrTOTPInvalid].
func (e *Engine) Login(ctx context.Context, in LoginInput) (_ *TokenPair, err error) {
	ctx, span := e.startSpan(ctx, "Login")
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
		endSpan(span, err)
	}()

	u, err := e.checkPassword(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.metricInc(MetricLoginFailure)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("enduser.id", u.ID))

	if u.TOTPEnabled {
		if in.TOTPCode == "" {
			e.metricInc(MetricTOTPRequired)
			return nil, ErrTOTPRequired
		}
		if _, err := e.checkTOTP(ctx, u, in.TOTPCode); err != nil {
			if errors.Is(err, ErrTOTPInvalid) {
				e.metricInc(MetricTOTPFailure)
			}
			return nil, err
		}
		e.metricInc(MetricTOTPSuccess)
	}

	if e.config.Auth.RequireVerifiedEmail && !u.Verified {
		e.metricInc(MetricLoginFailure)
		return nil, ErrEmailNotVerified
	}

	if e.config.Auth.UpgradeHashOnLogin {
		e.upgradeHash(ctx, u, in.Password)
	}

	pair, err := e.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	return pair, nil
}

// checkPassword returns the user for email if plaintext matches the stored
// hash. Every rejection path verifies exactly one hash.
func (e *Engine) checkPassword(ctx context.Context, email, plaintext string) (*User, error) {
	email, emailErr := NormalizeEmail(email)

	var u *User
	if emailErr == nil {
		var err error
		u, err = e.users.GetUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, storeError(err)
		}
	}

	if u == nil || u.PasswordHash == "" {
		_, _ = e.passwords.Verify(plaintext, e.dummyHash)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwords.Verify(plaintext, u.PasswordHash)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "stored password hash unreadable",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (e *Engine) upgradeHash(ctx context.Context, u *User, plaintext string) {
	needs, err := e.passwords.NeedsUpgrade(u.PasswordHash)
	if err != nil || !needs {
		return
	}

	hash, err := e.passwords.Hash(plaintext)
	if err == nil {
		err = e.users.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, hash)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		// The password changed since it was checked; keep the newer hash.
		return
	}
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "password rehash failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	u.PasswordHash = hash
}

// ValidateAccess verifies an access token and checks that it has not been
// revoked. Every rejection returns [ErrInvalidToken].
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*AccessClaims, error) {
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	res := flows.RunValidate(ctx, token, e.flows.Validate)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureStore:
		e.logDependency(ctx, "ValidateAccess", res.Err)
		return nil, dependencyError(ErrStoreUnavailable, res.Err)
	default:
		e.metricInc(MetricAccessRejected)
		return nil, ErrInvalidToken
	}

	role, err := permission.ParseRole(res.Access.Role)
	if err != nil {
		e.metricInc(MetricAccessRejected)
		return nil, ErrInvalidToken
	}

	return &AccessClaims{
		UserID:    res.Access.UserID,
		Role:      role,
		TokenID:   res.Access.TokenID,
		ExpiresAt: res.Access.ExpiresAt,
	}, nil
}
