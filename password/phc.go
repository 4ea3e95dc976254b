package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// ErrMalformedHash is returned for Argon2id strings that do not parse.
var ErrMalformedHash = errors.New("malformed password hash")

var b64 = base64.StdEncoding

// phc is one decoded $argon2id$ string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, p.memory, p.time, p.threads,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

// weakerThan reports whether p was produced with lower cost than cfg.
func (p phc) weakerThan(cfg Config) bool {
	return p.memory < cfg.Memory ||
		p.time < cfg.Time ||
		p.threads < cfg.Parallelism ||
		uint32(len(p.key)) != cfg.KeyLength
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}

// parsePHC decodes $argon2id$v=19$m=..,t=..,p=..$salt$key. Parameters must
// appear in canonical m, t, p order.
func parsePHC(s string) (phc, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return phc{}, malformed("expected six $-separated fields")
	}
	if fields[1] != algorithmID {
		return phc{}, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return phc{}, malformed("bad version field")
	}
	if version != argon2.Version {
		return phc{}, malformed(fmt.Sprintf("argon2 version %d", version))
	}

	var p phc
	var threads uint32
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, threads) != fields[3] {
		return phc{}, malformed("bad parameter field")
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || threads < uint32(minParallelism) || threads > 255 {
		return phc{}, malformed("parameters below minimum")
	}
	p.threads = uint8(threads)

	if p.salt, err = b64.DecodeString(fields[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return phc{}, malformed("bad salt")
	}
	if p.key, err = b64.DecodeString(fields[5]); err != nil || len(p.key) == 0 {
		return phc{}, malformed("bad key")
	}
	return p, nil
}
