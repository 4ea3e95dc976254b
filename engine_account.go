package authsvc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/authsvc/internal/flows"
	"github.com/MrEthical07/authsvc/permission"
	"github.com/google/uuid"
)

// Register creates an unverified user and mails a verification code.
//
// A duplicate email returns [ErrEmailTaken] and sends nothing. A mail failure
// is logged and does not fail registration; the user can ask for a new code
// with [Engine.ResendVerification].
func (e *Engine) Register(ctx context.Context, in RegisterInput) (_ *UserView, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	in, err = in.validate()
	if err != nil {
		return nil, err
	}

	hash, err := e.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	code, stored, err := e.newCode(CodePurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         permission.RoleUser,
		Code:         &stored,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrEmailTaken
		}
		return nil, storeError(err)
	}
	e.metricInc(MetricRegisterSuccess)

	if err := e.sendCode(ctx, u, code, CodePurposeVerifyEmail); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "verification mail not delivered",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}

	return u.View(), nil
}

// Profile returns the public projection of the user.
func (e *Engine) Profile(ctx context.Context, userID string) (*UserView, error) {
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return u.View(), nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every refresh grant of the user. A wrong current password returns
// [ErrInvalidCredentials].
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ChangePassword")
	defer func() { endSpan(span, err) }()

	if oldPassword == "" {
		return invalidField("oldPassword", "is required")
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}
	if u.PasswordHash == "" {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return ErrInvalidCredentials
	}

	ok, err := e.passwords.Verify(oldPassword, u.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return ErrInvalidCredentials
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, u.PasswordHash, hash); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.metricInc(MetricPasswordChangeInvalidOld)
		}
		return storeError(err)
	}

	if err := e.revokeAll(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

func (e *Engine) revokeAll(ctx context.Context, userID string) error {
	res := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	if res.Err != nil {
		e.logDependency(ctx, "revokeAll", res.Err)
		return dependencyError(ErrStoreUnavailable, res.Err)
	}
	e.metrics.Add(MetricSessionInvalidated, uint64(res.GrantsRemoved))
	return nil
}
