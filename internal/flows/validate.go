package flows

import (
	"context"
	"time"
)

// ValidateFailureKind classifies access-token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureParse
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidatedAccess is the verified content of an access token.
type ValidatedAccess struct {
	UserID    string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

type BlacklistReader interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// ValidateDeps captures validation flow dependencies.
type ValidateDeps struct {
	ParseAccess func(string) (ValidatedAccess, error)
	Blacklist   BlacklistReader
}

type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Access  ValidatedAccess
}

// RunValidate checks the signature first so that forged tokens never reach
// Redis, then consults the blacklist.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	access, err := deps.ParseAccess(token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureParse, Err: err}
	}

	revoked, err := deps.Blacklist.IsBlacklisted(ctx, token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Access: access}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, Access: access}
	}

	return ValidateResult{Access: access}
}
