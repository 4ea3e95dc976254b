package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc/session"
)

var (
	errNotFound = errors.New("not found")
	errMismatch = errors.New("mismatch")
)

type fakeGrants struct {
	rotateErr   error
	rotated     []string
	blacklisted map[string]time.Time
	deleted     []string
	deleteOwner string
}

func (f *fakeGrants) Rotate(_ context.Context, oldToken, userID, newToken string, next *session.Grant, _ time.Duration) (*session.Grant, error) {
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	f.rotated = append(f.rotated, oldToken+"->"+newToken)
	return &session.Grant{UserID: userID, Role: next.Role}, nil
}

func (f *fakeGrants) Delete(_ context.Context, token, userID string) (bool, error) {
	if f.deleteOwner != "" && f.deleteOwner != userID {
		return false, errMismatch
	}
	f.deleted = append(f.deleted, token)
	return true, nil
}

func (f *fakeGrants) Blacklist(_ context.Context, token string, expiresAt time.Time) error {
	if f.blacklisted == nil {
		f.blacklisted = map[string]time.Time{}
	}
	f.blacklisted[token] = expiresAt
	return nil
}

func (f *fakeGrants) DeleteAllForUser(context.Context, string) (int, error) {
	return 3, nil
}

func (f *fakeGrants) IsBlacklisted(_ context.Context, token string) (bool, error) {
	_, ok := f.blacklisted[token]
	return ok, nil
}

func refreshDeps(g *fakeGrants) RefreshDeps {
	now := time.Unix(1_700_000_000, 0)
	return RefreshDeps{
		ParseRefresh: func(tok string) (string, error) {
			if tok == "bad" {
				return "", errors.New("parse")
			}
			return "u1", nil
		},
		LoadRole: func(context.Context, string) (string, error) { return "admin", nil },
		IssuePair: func(userID, role string) (IssuedPair, error) {
			return IssuedPair{
				AccessToken:      "a2",
				RefreshToken:     "r2",
				AccessExpiresAt:  now.Add(time.Minute),
				RefreshExpiresAt: now.Add(time.Hour),
			}, nil
		},
		Grants:        g,
		Now:           func() time.Time { return now },
		GrantNotFound: errNotFound,
		OwnerMismatch: errMismatch,
	}
}

func TestRunRefreshRotates(t *testing.T) {
	g := &fakeGrants{}
	res := RunRefresh(context.Background(), "r1", refreshDeps(g))
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.Role != "admin" || res.Pair.RefreshToken != "r2" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(g.rotated) != 1 || g.rotated[0] != "r1->r2" {
		t.Fatalf("expected one rotation, got %v", g.rotated)
	}
}

func TestRunRefreshClassifiesFailures(t *testing.T) {
	cases := []struct {
		name  string
		token string
		err   error
		want  RefreshFailureKind
	}{
		{name: "decode", token: "bad", want: RefreshFailureDecode},
		{name: "missing grant", token: "r1", err: errNotFound, want: RefreshFailureGrantNotFound},
		{name: "owner", token: "r1", err: errMismatch, want: RefreshFailureOwnerMismatch},
		{name: "store", token: "r1", err: errors.New("redis down"), want: RefreshFailureRotate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunRefresh(context.Background(), tc.token, refreshDeps(&fakeGrants{rotateErr: tc.err}))
			if res.Failure != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, res.Failure)
			}
		})
	}
}

func TestRunLogoutDecodeFailureMutatesNothing(t *testing.T) {
	g := &fakeGrants{}
	res := RunLogout(context.Background(), "junk", "r1", LogoutDeps{
		DecodeAccess: func(string) (string, time.Time, error) { return "", time.Time{}, errors.New("bad") },
		Grants:       g,
	})
	if res.Failure != LogoutFailureDecode {
		t.Fatalf("expected decode failure, got %v", res.Failure)
	}
	if len(g.blacklisted) != 0 || len(g.deleted) != 0 {
		t.Fatal("store must not be touched on decode failure")
	}
}

func TestRunLogoutBlacklistsAndDeletesGrant(t *testing.T) {
	g := &fakeGrants{}
	exp := time.Now().Add(time.Minute)
	res := RunLogout(context.Background(), "a1", "r1", LogoutDeps{
		DecodeAccess: func(string) (string, time.Time, error) { return "u1", exp, nil },
		Grants:       g,
	})
	if res.Failure != LogoutFailureNone || res.GrantsRemoved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := g.blacklisted["a1"]; !got.Equal(exp) {
		t.Fatalf("expected blacklist until %v, got %v", exp, got)
	}
}

func TestRunLogoutForeignRefreshRejected(t *testing.T) {
	g := &fakeGrants{deleteOwner: "someone-else"}
	res := RunLogout(context.Background(), "a1", "r1", LogoutDeps{
		DecodeAccess: func(string) (string, time.Time, error) { return "u1", time.Now().Add(time.Minute), nil },
		Grants:       g,
	})
	if res.Failure != LogoutFailureGrant || !errors.Is(res.Err, errMismatch) {
		t.Fatalf("expected grant failure, got %+v", res)
	}
}

func TestRunValidateRevoked(t *testing.T) {
	g := &fakeGrants{blacklisted: map[string]time.Time{"a1": time.Now()}}
	deps := ValidateDeps{
		ParseAccess: func(tok string) (ValidatedAccess, error) {
			return ValidatedAccess{UserID: "u1"}, nil
		},
		Blacklist: g,
	}
	if res := RunValidate(context.Background(), "a1", deps); res.Failure != ValidateFailureRevoked {
		t.Fatalf("expected revoked, got %v", res.Failure)
	}
	if res := RunValidate(context.Background(), "a2", deps); res.Failure != ValidateFailureNone {
		t.Fatalf("expected success, got %v", res.Failure)
	}
}
