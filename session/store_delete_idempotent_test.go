package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "as")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testGrant(userID string) *Grant {
	now := time.Now()
	return &Grant{
		UserID:    userID,
		Role:      "user",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}

func TestDeleteGrantIdempotentAndIndex(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "refresh-1", testGrant("u-1"), time.Hour); err != nil {
		t.Fatalf("save grant: %v", err)
	}

	removed, err := store.Delete(ctx, "refresh-1", "u-1")
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "refresh-1", "u-1")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}

	if mr.Exists("as:rt:" + TokenDigest("refresh-1")) {
		t.Fatal("expected grant key to be gone")
	}
	if ok, _ := mr.SIsMember("as:ru:u-1", TokenDigest("refresh-1")); ok {
		t.Fatal("expected digest to be removed from user index")
	}
}

func TestDeleteGrantRespectsOwner(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "refresh-1", testGrant("u-1"), time.Hour); err != nil {
		t.Fatalf("save grant: %v", err)
	}

	if _, err := store.Delete(ctx, "refresh-1", "u-2"); !errors.Is(err, ErrGrantOwnerMismatch) {
		t.Fatalf("expected owner mismatch, got %v", err)
	}
	if _, err := store.Get(ctx, "refresh-1"); err != nil {
		t.Fatalf("expected grant to survive foreign delete: %v", err)
	}
}

func TestDeleteAllForUserOnlyTouchesThatUser(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, tok := range []string{"a", "b", "c"} {
		if err := store.Save(ctx, tok, testGrant("u-1"), time.Hour); err != nil {
			t.Fatalf("save grant: %v", err)
		}
	}
	if err := store.Save(ctx, "other", testGrant("u-2"), time.Hour); err != nil {
		t.Fatalf("save grant: %v", err)
	}

	removed, err := store.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed grants, got %d", removed)
	}

	count, err := store.ActiveGrantCount(ctx, "u-1")
	if err != nil || count != 0 {
		t.Fatalf("expected no grants for u-1: count=%d err=%v", count, err)
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Fatalf("expected other user's grant to survive: %v", err)
	}
}

func TestGrantExpiresWithTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "refresh-1", testGrant("u-1"), time.Minute); err != nil {
		t.Fatalf("save grant: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "refresh-1"); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected expired grant to be gone, got %v", err)
	}
	if _, err := store.Rotate(ctx, "refresh-1", "u-1", "refresh-2", testGrant("u-1"), time.Minute); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected rotate of expired grant to fail, got %v", err)
	}
}

func TestStoreDoesNotPersistRawTokens(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "raw-refresh-token", testGrant("u-1"), time.Hour); err != nil {
		t.Fatalf("save grant: %v", err)
	}
	if err := store.Blacklist(ctx, "raw-access-token", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	for _, key := range mr.Keys() {
		if key == "as:rt:raw-refresh-token" || key == "as:bl:raw-access-token" {
			t.Fatalf("raw token used as key: %s", key)
		}
	}
}
