package flows

import (
	"context"
	"time"
)

// LogoutFailureKind classifies logout flow failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureBlacklist
	LogoutFailureGrant
)

type LogoutGrantStore interface {
	Delete(ctx context.Context, token, userID string) (bool, error)
	Blacklist(ctx context.Context, token string, expiresAt time.Time) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	// DecodeAccess returns the subject and expiry of an access token.
	DecodeAccess func(string) (userID string, expiresAt time.Time, err error)
	Grants       LogoutGrantStore
}

type LogoutResult struct {
	Failure       LogoutFailureKind
	Err           error
	UserID        string
	GrantsRemoved int
}

// RunLogout blacklists accessToken until it expires and, when refreshToken
// is non-empty, deletes its grant if it belongs to the same user. Nothing is
// mutated when the access token cannot be decoded.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	userID, expiresAt, err := deps.DecodeAccess(accessToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	if err := deps.Grants.Blacklist(ctx, accessToken, expiresAt); err != nil {
		return LogoutResult{Failure: LogoutFailureBlacklist, Err: err, UserID: userID}
	}

	if refreshToken == "" {
		return LogoutResult{UserID: userID}
	}

	removed, err := deps.Grants.Delete(ctx, refreshToken, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureGrant, Err: err, UserID: userID}
	}
	result := LogoutResult{UserID: userID}
	if removed {
		result.GrantsRemoved = 1
	}
	return result
}

func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) LogoutResult {
	removed, err := deps.Grants.DeleteAllForUser(ctx, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureGrant, Err: err, UserID: userID}
	}
	return LogoutResult{UserID: userID, GrantsRemoved: removed}
}
