//go:build integration

package sqlstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/internal"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("AUTHSVC_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTHSVC_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, DialectPostgres, dsn, Options{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	u := testUser("pg-" + time.Now().Format("150405.000000") + "@example.com")
	mustCreate(t, s, u)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID)
	})

	if err := s.CreateUser(ctx, testUser(u.Email)); !errors.Is(err, authsvc.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	now := time.Now()
	hash := internal.HashCode("424242")
	if err := s.SetOneTimeCode(ctx, u.ID, authsvc.OneTimeCode{Purpose: authsvc.CodePurposeVerifyEmail, Hash: hash, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("set code: %v", err)
	}
	if err := s.ConsumeVerificationCode(ctx, u.ID, hash, now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := s.ConsumeVerificationCode(ctx, u.ID, hash, now); !errors.Is(err, authsvc.ErrInvalidOrExpiredCode) {
		t.Fatalf("expected single use, got %v", err)
	}
}
