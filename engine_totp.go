package authsvc

import (
	"context"
	"errors"
	"fmt"
)

// BeginTOTPEnrollment stores a fresh pending secret for userID, replacing any
// earlier pending one, and returns what an authenticator app needs to add it.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, userID string) (_ *TOTPSetup, err error) {
	ctx, span := e.startSpan(ctx, "BeginTOTPEnrollment")
	defer func() { endSpan(span, err) }()

	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if u.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	uri := e.totp.ProvisionURI(encoded, u.Email)
	qr, err := e.totp.QRCodeDataURL(uri)
	if err != nil {
		return nil, fmt.Errorf("render totp qr code: %w", err)
	}

	if err := e.users.SetPendingTOTPSecret(ctx, userID, raw); err != nil {
		return nil, storeError(err)
	}

	return &TOTPSetup{
		SecretBase32: encoded,
		URI:          uri,
		QRCode:       qr,
	}, nil
}

// ConfirmTOTPEnrollment enables the pending factor if code is valid for it.
// A wrong code returns [ErrTOTPInvalid] and leaves the factor pending.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, userID, code string) (err error) {
	ctx, span := e.startSpan(ctx, "ConfirmTOTPEnrollment")
	defer func() { endSpan(span, err) }()

	if code == "" {
		return invalidField("token", "is required")
	}

	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}
	if u.TOTPEnabled {
		return ErrTOTPAlreadyEnabled
	}
	if len(u.TOTPSecret) == 0 {
		return ErrTOTPNotConfigured
	}

	ok, counter, err := e.totp.VerifyCode(u.TOTPSecret, code, e.now())
	if err != nil || !ok {
		e.metricInc(MetricTOTPFailure)
		return ErrTOTPInvalid
	}

	if err := e.users.EnableTOTP(ctx, userID, u.TOTPSecret, counter); err != nil {
		if errors.Is(err, ErrTOTPInvalid) {
			// A newer setup replaced the secret this code was checked against.
			e.metricInc(MetricTOTPFailure)
		}
		return storeError(err)
	}
	e.metricInc(MetricTOTPEnabled)
	return nil
}

// DisableTOTP turns the factor off after checking a current code. The secret
// is erased.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) (err error) {
	ctx, span := e.startSpan(ctx, "DisableTOTP")
	defer func() { endSpan(span, err) }()

	if code == "" {
		return invalidField("token", "is required")
	}

	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}
	if !u.TOTPEnabled {
		return ErrTOTPNotEnabled
	}

	if _, err := e.checkTOTP(ctx, u, code); err != nil {
		e.metricInc(MetricTOTPFailure)
		return err
	}

	if err := e.users.DisableTOTP(ctx, userID); err != nil {
		return storeError(err)
	}
	e.metricInc(MetricTOTPDisabled)
	return nil
}

// checkTOTP verifies code for an enabled factor and, with replay protection
// on, records its time step so the same code cannot be used again.
func (e *Engine) checkTOTP(ctx context.Context, u *User, code string) (int64, error) {
	ok, counter, err := e.totp.VerifyCode(u.TOTPSecret, code, e.now())
	if err != nil || !ok {
		return 0, ErrTOTPInvalid
	}

	if !e.config.TOTP.EnforceReplayProtection {
		return counter, nil
	}
	if counter <= u.TOTPLastCounter {
		return 0, ErrTOTPInvalid
	}
	if err := e.users.AdvanceTOTPCounter(ctx, u.ID, counter); err != nil {
		return 0, storeError(err)
	}
	u.TOTPLastCounter = counter
	return counter, nil
}
