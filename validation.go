package authsvc

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/authsvc/password"
)

const (
	minNameLength = 2
	maxNameLength = 50
	maxEmailBytes = 254
)

// NormalizeEmail trims and lowercases email and checks it is a bare RFC 5322
// address. Display-name forms such as "Ann <ann@example.com>" are rejected.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalidField("email", "is required")
	}
	if len(email) > maxEmailBytes {
		return "", invalidField("email", "must be at most %d bytes", maxEmailBytes)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", invalidField("email", "is not a valid address")
	}
	return email, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", invalidField("name", "must be between %d and %d characters", minNameLength, maxNameLength)
	}
	return name, nil
}

func validatePassword(field, plaintext string) error {
	if plaintext == "" {
		return invalidField(field, "is required")
	}
	if err := password.CheckPolicy(plaintext); err != nil {
		return invalidField(field, "%s", strings.TrimPrefix(err.Error(), "password "))
	}
	return nil
}

func (in RegisterInput) validate() (RegisterInput, error) {
	var errs ValidationErrors

	name, err := validateName(in.Name)
	if err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	if err := validatePassword("password", in.Password); err != nil {
		errs = append(errs, err.(*ValidationError))
	}

	if err := errs.errOrNil(); err != nil {
		return RegisterInput{}, err
	}
	return RegisterInput{Name: name, Email: email, Password: in.Password}, nil
}
