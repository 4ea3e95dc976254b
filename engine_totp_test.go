package authsvc

import (
	"context"
	"testing"
	"time"
)

func enrollTOTP(t *testing.T, h *engineHarness, userID string) string {
	t.Helper()
	setup, err := h.engine.BeginTOTPEnrollment(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin enrollment: %v", err)
	}
	code, err := GenerateTOTPCode(setup.SecretBase32, h.clock.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := h.engine.ConfirmTOTPEnrollment(context.Background(), userID, code); err != nil {
		t.Fatalf("confirm enrollment: %v", err)
	}
	return setup.SecretBase32
}

func TestTOTPEnrollmentLifecycle(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	view := h.register(t, "Ann", "ann@example.com", "secret123")

	err := h.engine.ConfirmTOTPEnrollment(ctx, view.ID, "123456")
	requireIs(t, err, ErrTOTPNotConfigured)

	setup, err := h.engine.BeginTOTPEnrollment(ctx, view.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if setup.SecretBase32 == "" || setup.URI == "" || setup.QRCode == "" {
		t.Fatalf("incomplete setup %+v", setup)
	}

	good, _ := GenerateTOTPCode(setup.SecretBase32, h.clock.Now())
	bad := "000000"
	if bad == good {
		bad = "111111"
	}
	requireIs(t, h.engine.ConfirmTOTPEnrollment(ctx, view.ID, bad), ErrTOTPInvalid)
	if h.users.raw(t, "ann@example.com").TOTPEnabled {
		t.Fatal("wrong code must leave the factor pending")
	}

	if err := h.engine.ConfirmTOTPEnrollment(ctx, view.ID, good); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !h.users.raw(t, "ann@example.com").TOTPEnabled {
		t.Fatal("expected enabled factor")
	}

	_, err = h.engine.BeginTOTPEnrollment(ctx, view.ID)
	requireIs(t, err, ErrTOTPAlreadyEnabled)
}

func TestTOTPConfirmRejectsReplacedSecret(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	view := h.register(t, "Ann", "ann@example.com", "secret123")

	first, err := h.engine.BeginTOTPEnrollment(ctx, view.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	code, _ := GenerateTOTPCode(first.SecretBase32, h.clock.Now())

	// A second setup replaces the pending secret after Confirm has read it.
	var second *TOTPSetup
	h.users.onRead = func(*User) {
		second, err = h.engine.BeginTOTPEnrollment(ctx, view.ID)
		if err != nil {
			t.Errorf("second begin: %v", err)
		}
	}
	requireIs(t, h.engine.ConfirmTOTPEnrollment(ctx, view.ID, code), ErrTOTPInvalid)

	stored := h.users.raw(t, "ann@example.com")
	if stored.TOTPEnabled {
		t.Fatal("factor must stay pending when the checked secret was replaced")
	}

	fresh, _ := GenerateTOTPCode(second.SecretBase32, h.clock.Now())
	if err := h.engine.ConfirmTOTPEnrollment(ctx, view.ID, fresh); err != nil {
		t.Fatalf("confirm current secret: %v", err)
	}
}

func TestLoginTOTPChallenge(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	view := h.register(t, "Ann", "ann@example.com", "secret123")
	secret := enrollTOTP(t, h, view.ID)

	_, err := h.engine.Login(ctx, LoginInput{Email: "ann@example.com", Password: "secret123"})
	requireIs(t, err, ErrTOTPRequired)

	_, err = h.engine.Login(ctx, LoginInput{Email: "ann@example.com", Password: "secret123", TOTPCode: "abc"})
	requireIs(t, err, ErrTOTPInvalid)

	// The enrollment code's step is spent; move to the next one.
	h.clock.Advance(30 * time.Second)
	code, _ := GenerateTOTPCode(secret, h.clock.Now())
	if _, err := h.engine.Login(ctx, LoginInput{Email: "ann@example.com", Password: "secret123", TOTPCode: code}); err != nil {
		t.Fatalf("login with totp: %v", err)
	}

	_, err = h.engine.Login(ctx, LoginInput{Email: "ann@example.com", Password: "secret123", TOTPCode: code})
	requireIs(t, err, ErrTOTPInvalid)
}

func TestLoginTOTPWrongPasswordStillInvalidCredentials(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "Ann", "ann@example.com", "secret123")
	enrollTOTP(t, h, view.ID)

	_, err := h.engine.Login(context.Background(), LoginInput{Email: "ann@example.com", Password: "nope1234"})
	requireIs(t, err, ErrInvalidCredentials)
}

func TestDisableTOTP(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	view := h.register(t, "Ann", "ann@example.com", "secret123")

	requireIs(t, h.engine.DisableTOTP(ctx, view.ID, "123456"), ErrTOTPNotEnabled)

	secret := enrollTOTP(t, h, view.ID)
	h.clock.Advance(30 * time.Second)
	code, _ := GenerateTOTPCode(secret, h.clock.Now())

	bad := "000000"
	if bad == code {
		bad = "111111"
	}
	requireIs(t, h.engine.DisableTOTP(ctx, view.ID, bad), ErrTOTPInvalid)
	if !h.users.raw(t, "ann@example.com").TOTPEnabled {
		t.Fatal("wrong code must leave the factor enabled")
	}

	if err := h.engine.DisableTOTP(ctx, view.ID, code); err != nil {
		t.Fatalf("disable: %v", err)
	}
	stored := h.users.raw(t, "ann@example.com")
	if stored.TOTPEnabled || len(stored.TOTPSecret) != 0 {
		t.Fatal("expected factor cleared")
	}
	h.login(t, "ann@example.com", "secret123")
}
