package permission

import (
	"errors"
	"strings"
)

// Role is the coarse authorization level stored on a user and carried in
// access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrUnknownRole is returned by ParseRole for values outside the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps a stored or claimed role string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrUnknownRole
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil && string(r) == strings.ToLower(string(r))
}

// Set is an immutable set of roles built once at route wiring.
type Set map[Role]struct{}

// NewSet builds a Set from roles. Unknown roles are kept so that a typo
// denies access instead of granting it.
func NewSet(roles ...Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// HasRole reports whether role is a member of allowed. An empty set allows nobody.
func HasRole(role Role, allowed Set) bool {
	if len(allowed) == 0 {
		return false
	}
	_, ok := allowed[role]
	return ok
}
