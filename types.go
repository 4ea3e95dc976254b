package authsvc

import (
	"context"
	"time"

	"github.com/MrEthical07/authsvc/permission"
)

// CodePurpose distinguishes the two uses of the one-time code slot on a user.
type CodePurpose string

const (
	CodePurposeVerifyEmail   CodePurpose = "verify"
	CodePurposePasswordReset CodePurpose = "reset"
)

// OneTimeCode is the stored form of an email verification or password reset
// code. Hash is the hex SHA-256 digest of the code; the plaintext is never
// persisted. All three fields are set or cleared together.
type OneTimeCode struct {
	Purpose   CodePurpose
	Hash      string
	ExpiresAt time.Time
}

// User is the persisted identity record.
//
// PasswordHash and TOTPSecret never leave the engine; handlers only see
// [UserView].
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Role         permission.Role
	Verified     bool

	Code *OneTimeCode `json:"-"`

	TOTPSecret      []byte `json:"-"`
	TOTPEnabled     bool
	TOTPLastCounter int64

	Provider        string
	ProviderSubject string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserView is the public projection returned to API callers.
type UserView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       permission.Role `json:"role"`
	IsVerified bool            `json:"isVerified"`
	TwoFactor  bool            `json:"twoFactorEnabled"`
}

// View returns the public projection of u.
func (u *User) View() *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.Verified,
		TwoFactor:  u.TOTPEnabled,
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries the first factor and an optional TOTP code.
type LoginInput struct {
	Email    string
	Password string
	TOTPCode string
}

// TokenPair is the result of every successful authentication. User is set
// by Login and FederatedLogin and left nil by Refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	TokenType        string    `json:"tokenType"`
	User             *UserView `json:"user,omitempty"`
}

// AccessClaims is the verified identity extracted from an access token.
type AccessClaims struct {
	UserID    string
	Role      permission.Role
	TokenID   string
	ExpiresAt time.Time
}

// TOTPSetup is returned when enrollment begins.
type TOTPSetup struct {
	SecretBase32 string `json:"secret"`
	URI          string `json:"otpauthUrl"`
	QRCode       string `json:"qrCode"`
}

// Identity is a verified external identity returned by a federation provider.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers outbound email. Retry policy belongs to the implementation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// UserStore persists users. Implementations must make the conditional
// updates atomic: a code is consumed by at most one caller, and TOTP state
// transitions apply only from the expected prior state.
//
// Lookup methods return [ErrUserNotFound] for missing users. Storage
// failures should wrap [ErrStoreUnavailable].
type UserStore interface {
	// CreateUser inserts u. A duplicate email returns ErrEmailTaken.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, userID string) (*User, error)
	// GetUserByEmail returns the full record including the password hash and
	// TOTP state in one round trip.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByProvider(ctx context.Context, provider, subject string) (*User, error)

	SetOneTimeCode(ctx context.Context, userID string, code OneTimeCode) error
	// ConsumeVerificationCode marks the user verified and clears the code if
	// codeHash matches an unexpired verify code. Otherwise ErrInvalidOrExpiredCode.
	ConsumeVerificationCode(ctx context.Context, userID, codeHash string, now time.Time) error
	// ResetPasswordWithCode replaces the hash and clears the code if codeHash
	// matches an unexpired reset code. Otherwise ErrInvalidOrExpiredCode.
	ResetPasswordWithCode(ctx context.Context, userID, codeHash, newHash string, now time.Time) error
	// UpdatePasswordHash replaces oldHash with newHash. If the stored hash
	// is no longer oldHash nothing changes and ErrInvalidCredentials is
	// returned.
	UpdatePasswordHash(ctx context.Context, userID, oldHash, newHash string) error

	// SetPendingTOTPSecret stores secret while the factor is disabled.
	// Returns ErrTOTPAlreadyEnabled when it is enabled.
	SetPendingTOTPSecret(ctx context.Context, userID string, secret []byte) error
	// EnableTOTP enables the pending factor only while its secret is still
	// secret, and records counter as last used. A replaced secret returns
	// ErrTOTPInvalid.
	EnableTOTP(ctx context.Context, userID string, secret []byte, counter int64) error
	// DisableTOTP clears the secret and the enabled flag.
	DisableTOTP(ctx context.Context, userID string) error
	// AdvanceTOTPCounter records counter only if it is greater than the
	// stored one. A stale counter returns ErrTOTPInvalid.
	AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) error

	// LinkProvider attaches an external identity and marks the user verified.
	LinkProvider(ctx context.Context, userID, provider, subject string) error

	Ping(ctx context.Context) error
}
