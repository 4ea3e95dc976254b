package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessKey  = []byte(strings.Repeat("a", 32))
	testRefreshKey = []byte(strings.Repeat("r", 32))
)

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessKey:  testAccessKey,
		RefreshKey: testRefreshKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "authsvc",
		Leeway:     30 * time.Second,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsSharedOrShortKeys(t *testing.T) {
	base := Config{AccessTTL: time.Minute, RefreshTTL: time.Hour}

	shared := base
	shared.AccessKey = testAccessKey
	shared.RefreshKey = testAccessKey
	if _, err := NewManager(shared); err == nil {
		t.Fatal("expected identical keys to be rejected")
	}

	short := base
	short.AccessKey = []byte("short")
	short.RefreshKey = testRefreshKey
	if _, err := NewManager(short); err == nil {
		t.Fatal("expected short key to be rejected")
	}

	inverted := base
	inverted.AccessKey = testAccessKey
	inverted.RefreshKey = testRefreshKey
	inverted.RefreshTTL = time.Second
	if _, err := NewManager(inverted); err == nil {
		t.Fatal("expected refresh TTL shorter than access TTL to be rejected")
	}
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)

	access, exp, err := m.CreateAccess("u1", "admin")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if time.Until(exp) > 15*time.Minute || time.Until(exp) < 14*time.Minute {
		t.Fatalf("unexpected access expiry %v", exp)
	}

	claims, err := m.ParseAccess(access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "u1" || claims.Role != "admin" || claims.Type != TypeAccess || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	refresh, _, err := m.CreateRefresh("u1", "admin")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if _, err := m.ParseRefresh(refresh); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
}

func TestTokensAreUniqueWithinOneSecond(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	m := newTestManager(t, func() time.Time { return fixed })

	first, _, err := m.CreateRefresh("u1", "user")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	second, _, err := m.CreateRefresh("u1", "user")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct refresh tokens for identical claims")
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t, nil)

	access, _, _ := m.CreateAccess("u1", "user")
	refresh, _, _ := m.CreateRefresh("u1", "user")

	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected access token to fail refresh parse, got %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected refresh token to fail access parse, got %v", err)
	}
}

func TestParseAccessRejectsWrongTypeClaimUnderCorrectKey(t *testing.T) {
	m := newTestManager(t, nil)

	claims := Claims{UID: "u1", Role: "user", Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "authsvc",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testAccessKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected typ mismatch to fail, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)

	claims := Claims{UID: "u1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "authsvc",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims)
	token, err := tok.SignedString(testAccessKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessIssuerAndLeeway(t *testing.T) {
	m := newTestManager(t, nil)

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, c).SignedString(testAccessKey)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}
	base := func(issuer string, exp time.Time) Claims {
		return Claims{UID: "u1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    issuer,
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
	}

	if _, err := m.ParseAccess(sign(base("other", time.Now().Add(time.Minute)))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.ParseAccess(sign(base("authsvc", time.Now().Add(-15*time.Second)))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.ParseAccess(sign(base("authsvc", time.Now().Add(-2*time.Minute)))); !errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expected expired token to fail")
	}

	noExp := base("authsvc", time.Now())
	noExp.ExpiresAt = nil
	if _, err := m.ParseAccess(sign(noExp)); err == nil {
		t.Fatal("expected token without exp to fail")
	}
}

func TestParseAccessExpiresWithClock(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, func() time.Time { return now })

	access, _, err := m.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestDecodeUnverifiedIgnoresSignatureAndExpiry(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, func() time.Time { return now })

	access, exp, err := m.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	now = now.Add(time.Hour)

	claims, err := m.DecodeUnverified(access)
	if err != nil {
		t.Fatalf("decode unverified: %v", err)
	}
	if claims.UID != "u1" || !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := m.DecodeUnverified("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected malformed token to fail, got %v", err)
	}
}
