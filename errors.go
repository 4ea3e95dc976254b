package authsvc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken covers bad, expired, revoked and unknown tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidOrExpiredCode covers mismatched, expired and wrong-purpose one-time codes.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrEmailNotVerified is returned by Login when verified email is required.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTOTPRequired is returned by Login when a second factor is enabled but absent.
	ErrTOTPRequired = errors.New("2FA token required")
	// ErrTOTPInvalid is returned for a wrong or replayed TOTP code.
	ErrTOTPInvalid = errors.New("invalid 2FA token")
	// ErrTOTPAlreadyEnabled is returned when enrollment starts or confirms on an enabled factor.
	ErrTOTPAlreadyEnabled = errors.New("2FA already enabled")
	// ErrTOTPNotConfigured is returned when confirming without a pending secret.
	ErrTOTPNotConfigured = errors.New("2FA setup not started")
	// ErrTOTPNotEnabled is returned when disabling a factor that is not enabled.
	ErrTOTPNotEnabled = errors.New("2FA not enabled")

	// ErrForbidden is returned when the caller's role is not allowed.
	ErrForbidden = errors.New("access denied")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("user already exists")
	// ErrAlreadyVerified is returned when verifying an already verified email.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")

	// ErrRateLimited is returned when a limiter budget is exhausted.
	ErrRateLimited = errors.New("too many requests, please try again later")

	// ErrStoreUnavailable wraps user store and Redis failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrMailUnavailable wraps mail delivery failures.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrFederationUnavailable wraps identity provider failures.
	ErrFederationUnavailable = errors.New("identity provider unavailable")
	// ErrEngineNotReady is returned when a required dependency was not wired.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError describes malformed or missing input for one field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationErrors collects every field problem found in one request.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// errOrNil returns v as an error only when it holds at least one entry.
func (v ValidationErrors) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func invalidField(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies engine errors for transport mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindRateLimited
	KindDependency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}

	var ve *ValidationError
	var ves ValidationErrors
	switch {
	case errors.As(err, &ves), errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrMailUnavailable),
		errors.Is(err, ErrFederationUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return KindDependency
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidOrExpiredCode),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrTOTPRequired),
		errors.Is(err, ErrTOTPInvalid):
		return KindAuthentication
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrTOTPAlreadyEnabled),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPNotEnabled):
		return KindConflict
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// dependencyError wraps a collaborator failure under sentinel so that
// KindOf classifies it while the cause remains available for logging.
func dependencyError(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
