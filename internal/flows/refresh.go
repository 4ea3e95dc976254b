package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureUserLookup
	RefreshFailureIssue
	RefreshFailureGrantNotFound
	RefreshFailureOwnerMismatch
	RefreshFailureRotate
)

// IssuedPair is a freshly minted access/refresh token pair.
type IssuedPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Role    string
	Pair    IssuedPair
	// Replaced is the grant consumed by the rotation.
	Replaced *session.Grant
}

type RefreshGrantStore interface {
	Rotate(
		ctx context.Context,
		oldToken string,
		userID string,
		newToken string,
		next *session.Grant,
		ttl time.Duration,
	) (*session.Grant, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ParseRefresh  func(string) (userID string, err error)
	LoadRole      func(ctx context.Context, userID string) (string, error)
	IssuePair     func(userID, role string) (IssuedPair, error)
	Grants        RefreshGrantStore
	Now           func() time.Time
	GrantNotFound error
	OwnerMismatch error
}

// RunRefresh validates refreshToken, re-reads the owner's role and atomically
// swaps the stored grant for a new one.
//
// The new pair is minted before the swap. When the swap loses a race the
// minted tokens are simply discarded; they have no grant and cannot be used.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	userID, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	role, err := deps.LoadRole(ctx, userID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureUserLookup, Err: err, UserID: userID}
	}

	pair, err := deps.IssuePair(userID, role)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID, Role: role}
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	ttl := pair.RefreshExpiresAt.Sub(now())
	next := &session.Grant{
		UserID:    userID,
		Role:      role,
		CreatedAt: now().Unix(),
		ExpiresAt: pair.RefreshExpiresAt.Unix(),
	}

	replaced, err := deps.Grants.Rotate(ctx, refreshToken, userID, pair.RefreshToken, next, ttl)
	if err != nil {
		failure := RefreshFailureRotate
		switch {
		case deps.GrantNotFound != nil && errors.Is(err, deps.GrantNotFound):
			failure = RefreshFailureGrantNotFound
		case deps.OwnerMismatch != nil && errors.Is(err, deps.OwnerMismatch):
			failure = RefreshFailureOwnerMismatch
		}
		return RefreshResult{Failure: failure, Err: err, UserID: userID, Role: role}
	}

	return RefreshResult{
		Failure:  RefreshFailureNone,
		UserID:   userID,
		Role:     role,
		Pair:     pair,
		Replaced: replaced,
	}
}
