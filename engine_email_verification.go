package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authsvc/internal"
	"github.com/MrEthical07/authsvc/internal/rate"
)

// newCode draws a fresh one-time code and returns it with its stored form.
func (e *Engine) newCode(purpose CodePurpose) (string, OneTimeCode, error) {
	digits, ttl := e.config.EmailVerification.CodeDigits, e.config.EmailVerification.CodeTTL
	if purpose == CodePurposePasswordReset {
		digits, ttl = e.config.PasswordReset.CodeDigits, e.config.PasswordReset.CodeTTL
	}

	code, err := internal.NewOTP(digits)
	if err != nil {
		return "", OneTimeCode{}, err
	}
	return code, OneTimeCode{
		Purpose:   purpose,
		Hash:      internal.HashCode(code),
		ExpiresAt: e.now().Add(ttl).UTC(),
	}, nil
}

func (e *Engine) sendCode(ctx context.Context, u *User, code string, purpose CodePurpose) error {
	msg := Message{To: u.Email}
	switch purpose {
	case CodePurposePasswordReset:
		msg.Subject = "Password reset code"
		msg.Body = fmt.Sprintf(
			"Hello %s,\n\nYour password reset code is %s. It expires in %s.\n\nIf you did not ask for a reset, ignore this message.\n",
			u.Name, code, humanTTL(e.config.PasswordReset.CodeTTL),
		)
	default:
		msg.Subject = "Verify your email"
		msg.Body = fmt.Sprintf(
			"Hello %s,\n\nYour verification code is %s. It expires in %s.\n",
			u.Name, code, humanTTL(e.config.EmailVerification.CodeTTL),
		)
	}

	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricMailFailure)
		return dependencyError(ErrMailUnavailable, err)
	}
	return nil
}

func humanTTL(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

// allowCodeRequest applies the per-address budget for mailed codes.
func (e *Engine) allowCodeRequest(ctx context.Context, email string) error {
	if _, err := e.limiter.AllowCodeRequest(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return ErrRateLimited
		}
		return dependencyError(ErrStoreUnavailable, err)
	}
	return nil
}

// VerifyEmail consumes a verification code. Mismatched, expired, reused and
// unknown-address codes all return [ErrInvalidOrExpiredCode].
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (err error) {
	ctx, span := e.startSpan(ctx, "VerifyEmail")
	defer func() { endSpan(span, err) }()

	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}
	if code == "" {
		return invalidField("otp", "is required")
	}

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrInvalidOrExpiredCode
		}
		return storeError(err)
	}
	if u.Verified {
		return ErrAlreadyVerified
	}
	if !isNumericString(code) {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrInvalidOrExpiredCode
	}

	if err := e.users.ConsumeVerificationCode(ctx, u.ID, internal.HashCode(code), e.now().UTC()); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			e.metricInc(MetricEmailVerificationFailure)
		}
		return storeError(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	return nil
}

// ResendVerification mails a fresh code to an unverified user. Unknown and
// already verified addresses succeed without sending anything.
func (e *Engine) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "ResendVerification")
	defer func() { endSpan(span, err) }()

	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}
	if err := e.allowCodeRequest(ctx, email); err != nil {
		return err
	}
	e.metricInc(MetricEmailVerificationRequest)

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return storeError(err)
	}
	if u.Verified {
		return nil
	}

	code, stored, err := e.newCode(CodePurposeVerifyEmail)
	if err != nil {
		return err
	}
	if err := e.users.SetOneTimeCode(ctx, u.ID, stored); err != nil {
		return storeError(err)
	}
	return e.sendCode(ctx, u, code, CodePurposeVerifyEmail)
}
