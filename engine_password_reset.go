package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/internal"
)

// RequestPasswordReset stores a reset code for email and mails it.
//
// An unknown address returns [ErrUserNotFound] unless
// PasswordReset.HideUnknownEmail is set, in which case it succeeds silently.
// A mail failure is returned as a dependency error because the caller has no
// other way to obtain the code.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}
	if err := e.allowCodeRequest(ctx, email); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetRequest)

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) && e.config.PasswordReset.HideUnknownEmail {
			return nil
		}
		return storeError(err)
	}

	code, stored, err := e.newCode(CodePurposePasswordReset)
	if err != nil {
		return err
	}
	if err := e.users.SetOneTimeCode(ctx, u.ID, stored); err != nil {
		return storeError(err)
	}

	if err := e.sendCode(ctx, u, code, CodePurposePasswordReset); err != nil {
		e.logDependency(ctx, "RequestPasswordReset", err)
		return err
	}
	return nil
}

// VerifyResetCode reports whether code is the live reset code for email. It
// does not consume the code.
func (e *Engine) VerifyResetCode(ctx context.Context, email, code string) (bool, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return false, err
	}

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, storeError(err)
	}

	return resetCodeLive(u, code, e.now()), nil
}

func resetCodeLive(u *User, code string, now time.Time) bool {
	if u.Code == nil || u.Code.Purpose != CodePurposePasswordReset {
		return false
	}
	if !isNumericString(code) {
		return false
	}
	if !u.Code.ExpiresAt.After(now) {
		return false
	}
	return internal.CodeMatches(code, u.Code.Hash)
}

// ResetPassword consumes a reset code and replaces the password in one
// conditional write, then revokes every refresh grant of the user.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() { endSpan(span, err) }()

	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}
	if code == "" {
		return invalidField("otp", "is required")
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrInvalidOrExpiredCode
		}
		return storeError(err)
	}
	if !isNumericString(code) {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrInvalidOrExpiredCode
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.users.ResetPasswordWithCode(ctx, u.ID, internal.HashCode(code), hash, e.now().UTC()); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			e.metricInc(MetricPasswordResetConfirmFailure)
		}
		return storeError(err)
	}

	if err := e.revokeAll(ctx, u.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	return nil
}
