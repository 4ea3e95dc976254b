package authsvc

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"
)

// Appendix B of RFC 6238, 8-digit codes.
func TestTOTPRFC6238Vectors(t *testing.T) {
	sha1Key := []byte("12345678901234567890")
	sha256Key := []byte("12345678901234567890123456789012")

	vectors := []struct {
		alg  string
		key  []byte
		unix int64
		want string
	}{
		{"SHA1", sha1Key, 59, "94287082"},
		{"SHA1", sha1Key, 1111111109, "07081804"},
		{"SHA1", sha1Key, 1111111111, "14050471"},
		{"SHA1", sha1Key, 1234567890, "89005924"},
		{"SHA1", sha1Key, 2000000000, "69279037"},
		{"SHA1", sha1Key, 20000000000, "65353130"},
		{"SHA256", sha256Key, 59, "46119246"},
		{"SHA256", sha256Key, 1111111109, "68084774"},
		{"SHA256", sha256Key, 1234567890, "91819424"},
		{"SHA256", sha256Key, 2000000000, "90698825"},
	}

	for _, v := range vectors {
		m := newTOTPManager(TOTPConfig{Issuer: "authsvc", Digits: 8, Period: 30, Algorithm: v.alg})
		at := time.Unix(v.unix, 0)

		got, err := m.CodeAt(v.key, at)
		if err != nil || got != v.want {
			t.Fatalf("%s@%d: CodeAt = %q, %v; want %q", v.alg, v.unix, got, err, v.want)
		}
		ok, counter, err := m.VerifyCode(v.key, v.want, at)
		if err != nil || !ok || counter != v.unix/30 {
			t.Fatalf("%s@%d: VerifyCode ok=%v counter=%d err=%v", v.alg, v.unix, ok, counter, err)
		}
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)
	secret := []byte("12345678901234567890")
	now := time.Unix(1_700_000_000, 0)

	previous, err := m.CodeAt(secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	ok, counter, err := m.VerifyCode(secret, previous, now)
	if err != nil || !ok {
		t.Fatalf("expected previous step to be accepted: ok=%v err=%v", ok, err)
	}
	if counter != now.Unix()/30-1 {
		t.Fatalf("unexpected matched counter %d", counter)
	}

	stale, err := m.CodeAt(secret, now.Add(-90*time.Second))
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if ok, _, _ := m.VerifyCode(secret, stale, now); ok {
		t.Fatal("expected code three steps old to be rejected")
	}
}

func TestTOTPRejectsMalformedCodes(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)
	secret := []byte("12345678901234567890")
	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456", "١٢٣٤٥٦"} {
		if ok, _, err := m.VerifyCode(secret, code, time.Now()); ok || err != nil {
			t.Fatalf("expected %q to be rejected cleanly: ok=%v err=%v", code, ok, err)
		}
	}
	if _, _, err := m.VerifyCode(nil, "123456", time.Now()); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestTOTPProvisioningArtifacts(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)

	raw, b32, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	if len(raw) != 20 || strings.Contains(b32, "=") {
		t.Fatalf("unexpected secret shape: %d bytes, %q", len(raw), b32)
	}

	uri := m.ProvisionURI(b32, "a@x.com")
	parsed, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	if parsed.Scheme != "otpauth" || parsed.Host != "totp" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if parsed.Query().Get("secret") != b32 || parsed.Query().Get("issuer") != "authsvc" {
		t.Fatalf("unexpected uri query %q", parsed.RawQuery)
	}

	dataURL, err := m.QRCodeDataURL(uri)
	if err != nil {
		t.Fatalf("QRCodeDataURL error: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("unexpected data url prefix: %.40s", dataURL)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil || len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("expected PNG payload, err=%v", err)
	}

	code, err := GenerateTOTPCode(b32, time.Now())
	if err != nil {
		t.Fatalf("GenerateTOTPCode error: %v", err)
	}
	if ok, _, _ := m.VerifyCode(raw, code, time.Now()); !ok {
		t.Fatal("expected generated code to verify against raw secret")
	}
}
