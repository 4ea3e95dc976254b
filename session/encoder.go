package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// grantFormatVersion leads every encoded grant. The Lua scripts in store.go
// read the owner straight from bytes 2..2+len, so the version byte and the
// length-prefixed user ID must stay first.
const grantFormatVersion = 1

const maxField = 255

var errInvalidGrant = errors.New("invalid grant encoding")

// Encode serialises g into the binary layout stored in Redis:
//
//	[version][len][userID][len][role][createdAt int64][expiresAt int64]
func Encode(g *Grant) ([]byte, error) {
	switch {
	case g == nil || g.UserID == "":
		return nil, errors.New("grant user id is empty")
	case len(g.UserID) > maxField:
		return nil, fmt.Errorf("grant user id exceeds %d bytes", maxField)
	case len(g.Role) > maxField:
		return nil, fmt.Errorf("grant role exceeds %d bytes", maxField)
	}

	out := make([]byte, 0, 3+len(g.UserID)+len(g.Role)+16)
	out = append(out, grantFormatVersion, byte(len(g.UserID)))
	out = append(out, g.UserID...)
	out = append(out, byte(len(g.Role)))
	out = append(out, g.Role...)
	out = binary.BigEndian.AppendUint64(out, uint64(g.CreatedAt))
	out = binary.BigEndian.AppendUint64(out, uint64(g.ExpiresAt))
	return out, nil
}

// Decode parses a grant produced by Encode. Trailing bytes are rejected.
func Decode(data []byte) (*Grant, error) {
	if len(data) < 2 || data[0] != grantFormatVersion {
		return nil, errInvalidGrant
	}
	rest := data[1:]

	user, rest, ok := lengthPrefixed(rest)
	if !ok || user == "" {
		return nil, errInvalidGrant
	}
	role, rest, ok := lengthPrefixed(rest)
	if !ok || len(rest) != 16 {
		return nil, errInvalidGrant
	}

	return &Grant{
		UserID:    user,
		Role:      role,
		CreatedAt: int64(binary.BigEndian.Uint64(rest[:8])),
		ExpiresAt: int64(binary.BigEndian.Uint64(rest[8:])),
	}, nil
}

func lengthPrefixed(b []byte) (string, []byte, bool) {
	if len(b) == 0 || len(b) < 1+int(b[0]) {
		return "", nil, false
	}
	n := int(b[0])
	return string(b[1 : 1+n]), b[1+n:], true
}
