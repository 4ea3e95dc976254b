package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is returned for every verification failure. Callers cannot
// tell a bad signature from an expired or malformed token.
var ErrTokenInvalid = errors.New("invalid or expired token")

// TokenType distinguishes access tokens from refresh tokens inside the claim set.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

const minKeyBytes = 32

// Config holds signing keys and lifetimes. Both keys are HS256 secrets and
// must differ so that one leaked key cannot mint the other token class.
type Config struct {
	AccessKey  []byte
	RefreshKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration

	// Now overrides the clock for issuance and validation. Nil means time.Now.
	Now func() time.Time
}

// Manager mints and verifies access and refresh tokens.
//
// Manager instances are immutable after NewManager and safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the claim set carried by both token classes.
type Claims struct {
	UID  string    `json:"uid"`
	Role string    `json:"role"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessKey) < minKeyBytes || len(cfg.RefreshKey) < minKeyBytes {
		return nil, fmt.Errorf("signing keys must be at least %d bytes", minKeyBytes)
	}
	if string(cfg.AccessKey) == string(cfg.RefreshKey) {
		return nil, errors.New("access and refresh keys must differ")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// CreateAccess signs a short-lived access token for uid and role.
func (j *Manager) CreateAccess(uid, role string) (string, time.Time, error) {
	return j.create(uid, role, TypeAccess, j.config.AccessTTL, j.config.AccessKey)
}

// CreateRefresh signs a long-lived refresh token for uid and role.
func (j *Manager) CreateRefresh(uid, role string) (string, time.Time, error) {
	return j.create(uid, role, TypeRefresh, j.config.RefreshTTL, j.config.RefreshKey)
}

func (j *Manager) create(uid, role string, typ TokenType, ttl time.Duration, key []byte) (string, time.Time, error) {
	if uid == "" {
		return "", time.Time{}, errors.New("empty subject")
	}

	now := j.config.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UID:  uid,
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}

	// NumericDate truncates to seconds; report what the token actually carries.
	return signed, claims.ExpiresAt.Time, nil
}

// ParseAccess verifies an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, TypeAccess, j.config.AccessKey)
}

// ParseRefresh verifies a refresh token and returns its claims.
func (j *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, TypeRefresh, j.config.RefreshKey)
}

func (j *Manager) parse(tokenStr string, want TokenType, key []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != want || claims.UID == "" || claims.UID != claims.Subject {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// DecodeUnverified reads the claims of a structurally valid token without
// checking its signature or expiry. It is only for tokens the caller is about
// to discard, such as at logout.
func (j *Manager) DecodeUnverified(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UID == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
