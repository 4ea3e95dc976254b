package authsvc

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authsvc/password"
)

// Config holds engine policy. It is fixed at Build time; nothing reloads it.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          password.Config
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Auth              AuthConfig
	TOTP              TOTPConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two signing secrets and token lifetimes.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh grant and blacklist storage.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
CODE FLOWS
====================================
*/

// EmailVerificationConfig controls verification code issuance.
type EmailVerificationConfig struct {
	CodeTTL    time.Duration
	CodeDigits int
}

// PasswordResetConfig controls reset code issuance.
type PasswordResetConfig struct {
	CodeTTL    time.Duration
	CodeDigits int
	// HideUnknownEmail makes RequestPasswordReset succeed silently for
	// unknown addresses instead of returning ErrUserNotFound.
	HideUnknownEmail bool
}

// AuthConfig holds login policy.
type AuthConfig struct {
	// RequireVerifiedEmail rejects login for unverified users. Off by default:
	// unverified users may authenticate and are flagged in their profile.
	RequireVerifiedEmail bool
	// UpgradeHashOnLogin rehashes legacy or weaker password hashes after a
	// successful login.
	UpgradeHashOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig holds RFC 6238 parameters.
type TOTPConfig struct {
	Issuer                  string
	Digits                  int
	Period                  int
	Algorithm               string
	Skew                    int
	EnforceReplayProtection bool
	QRCodeSize              int
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Signing secrets are left empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authsvc",
		},
		Session: SessionConfig{
			RedisPrefix: "authsvc",
		},
		Password: password.DefaultConfig(),
		EmailVerification: EmailVerificationConfig{
			CodeTTL:    24 * time.Hour,
			CodeDigits: 6,
		},
		PasswordReset: PasswordResetConfig{
			CodeTTL:    10 * time.Minute,
			CodeDigits: 6,
		},
		Auth: AuthConfig{
			UpgradeHashOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:                  "authsvc",
			Digits:                  6,
			Period:                  30,
			Algorithm:               "SHA1",
			Skew:                    1,
			EnforceReplayProtection: true,
			QRCodeSize:              256,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first policy violation in c.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be > AccessTTL")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must be set")
	}

	// Codes
	if c.EmailVerification.CodeTTL <= 0 || c.PasswordReset.CodeTTL <= 0 {
		return errors.New("code TTLs must be > 0")
	}
	for _, d := range []int{c.EmailVerification.CodeDigits, c.PasswordReset.CodeDigits} {
		if d < 6 || d > 10 {
			return errors.New("code digits must be between 6 and 10")
		}
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be between 0 and 3")
	}
	if _, err := hmacFunc(c.TOTP.Algorithm); err != nil {
		return err
	}
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}

	return nil
}
