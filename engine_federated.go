package authsvc

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authsvc/permission"
	"github.com/google/uuid"
)

// FederatedLogin signs in the holder of an external identity.
//
// The user is found by provider and subject. Failing that, an existing
// account with the same email is linked, but only when the provider reports
// the email as verified; otherwise [ErrEmailTaken] is returned. Failing
// both, a verified account without a password is created.
//
// Concurrent calls for the same identity share one lookup-or-create.
func (e *Engine) FederatedLogin(ctx context.Context, id Identity) (_ *TokenPair, err error) {
	ctx, span := e.startSpan(ctx, "FederatedLogin")
	defer func() { endSpan(span, err) }()

	if id.Provider == "" || id.Subject == "" {
		return nil, invalidField("identity", "provider and subject are required")
	}
	email, err := NormalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}
	id.Email = email

	key := id.Provider + "\x00" + id.Subject
	// The lookup is shared, so one caller's cancellation must not fail the rest.
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.federated.Do(key, func() (any, error) {
		return e.resolveIdentity(shared, id)
	})
	if err != nil {
		return nil, err
	}
	u := v.(*User)

	pair, err := e.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricFederatedLogin)
	return pair, nil
}

func (e *Engine) resolveIdentity(ctx context.Context, id Identity) (*User, error) {
	u, err := e.users.GetUserByProvider(ctx, id.Provider, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, storeError(err)
	}

	u, err = e.users.GetUserByEmail(ctx, id.Email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			return nil, ErrEmailTaken
		}
		if err := e.users.LinkProvider(ctx, u.ID, id.Provider, id.Subject); err != nil {
			return nil, storeError(err)
		}
		u.Provider, u.ProviderSubject, u.Verified = id.Provider, id.Subject, true
		return u, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, storeError(err)
	}

	now := e.now().UTC()
	u = &User{
		ID:              uuid.NewString(),
		Name:            federatedName(id),
		Email:           id.Email,
		Role:            permission.RoleUser,
		Verified:        true,
		Provider:        id.Provider,
		ProviderSubject: id.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.users.CreateUser(ctx, u); err != nil {
		return nil, storeError(err)
	}
	e.metricInc(MetricFederatedUserCreated)
	return u, nil
}

func federatedName(id Identity) string {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(id.Email, "@")
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name
}
