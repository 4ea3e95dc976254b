package authsvc

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authsvc/internal"
	qrcode "github.com/skip2/go-qrcode"
)

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var errEmptyTOTPSecret = errors.New("empty totp secret")

// totpManager generates and checks RFC 6238 codes for one configuration.
type totpManager struct {
	config  TOTPConfig
	newHash func() hash.Hash
	modulus uint32
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.QRCodeSize <= 0 {
		cfg.QRCodeSize = 256
	}
	// Config.Validate has already rejected unknown algorithms.
	h, _ := hmacFunc(cfg.Algorithm)
	if h == nil {
		h = sha1.New
	}
	return &totpManager{config: cfg, newHash: h, modulus: pow10(cfg.Digits)}
}

// GenerateSecret returns a fresh secret in raw and base32 form.
func (m *totpManager) GenerateSecret() ([]byte, string, error) {
	raw, err := internal.NewTOTPSecret()
	if err != nil {
		return nil, "", err
	}
	return raw, totpEncoding.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI understood by authenticator apps.
func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	q := url.Values{
		"secret":    {secretBase32},
		"issuer":    {m.config.Issuer},
		"algorithm": {strings.ToUpper(m.config.Algorithm)},
		"digits":    {strconv.Itoa(m.config.Digits)},
		"period":    {strconv.Itoa(m.config.Period)},
	}
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + m.config.Issuer + ":" + account,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// QRCodeDataURL renders uri as a PNG QR code data URL.
func (m *totpManager) QRCodeDataURL(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, m.config.QRCodeSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (m *totpManager) step(t time.Time) int64 {
	return t.Unix() / int64(m.config.Period)
}

// VerifyCode checks code against secret for the current step and Skew steps
// either side. It returns the step that matched so callers can refuse replays.
func (m *totpManager) VerifyCode(secret []byte, code string, now time.Time) (bool, int64, error) {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumericString(code) {
		return false, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, errEmptyTOTPSecret
	}

	current := m.step(now)
	for d := -m.config.Skew; d <= m.config.Skew; d++ {
		counter := current + int64(d)
		if counter < 0 {
			continue
		}
		want := m.code(secret, counter)
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

// CodeAt returns the code for the time step containing t.
func (m *totpManager) CodeAt(secret []byte, t time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errEmptyTOTPSecret
	}
	return m.code(secret, m.step(t)), nil
}

// code is RFC 4226 HOTP with dynamic truncation.
func (m *totpManager) code(secret []byte, counter int64) string {
	mac := hmac.New(m.newHash, secret)
	_, _ = mac.Write(binary.BigEndian.AppendUint64(nil, uint64(counter)))
	sum := mac.Sum(nil)

	off := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[off:off+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", m.config.Digits, bin%m.modulus)
}

func pow10(n int) uint32 {
	out := uint32(1)
	for ; n > 0; n-- {
		out *= 10
	}
	return out
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported totp algorithm %q", algorithm)
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GenerateTOTPCode returns the current default-configuration code for a
// base32 secret, for clients without an authenticator app.
func GenerateTOTPCode(secretBase32 string, t time.Time) (string, error) {
	secret, err := totpEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(secretBase32)))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	return newTOTPManager(DefaultConfig().TOTP).CodeAt(secret, t)
}
