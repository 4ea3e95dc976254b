package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinLength and MaxLength bound the accepted plaintext in bytes.
	MinLength = 6
	MaxLength = 1024
)

var (
	ErrTooShort = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrTooLong  = fmt.Errorf("password must be at most %d characters", MaxLength)
	// ErrUnsupportedHash is returned for stored hashes that are neither
	// Argon2id nor bcrypt.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production cost parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	var errs []error
	if c.Memory < minMemoryKB {
		errs = append(errs, fmt.Errorf("memory must be >= %d KiB", minMemoryKB))
	}
	if c.Time < minTimeCost {
		errs = append(errs, fmt.Errorf("time must be >= %d", minTimeCost))
	}
	if c.Parallelism < minParallelism {
		errs = append(errs, fmt.Errorf("parallelism must be >= %d", minParallelism))
	}
	if c.SaltLength < minSaltLength {
		errs = append(errs, fmt.Errorf("salt length must be >= %d", minSaltLength))
	}
	if c.KeyLength < minKeyLength {
		errs = append(errs, fmt.Errorf("key length must be >= %d", minKeyLength))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("password config: %w", err)
	}
	return nil
}

// Argon2 hashes new passwords with Argon2id and verifies both Argon2id and
// legacy bcrypt hashes. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// CheckPolicy reports whether plaintext satisfies the length policy. Bytes
// are counted as given, without Unicode normalization.
func CheckPolicy(plaintext string) error {
	switch {
	case len(plaintext) < MinLength:
		return ErrTooShort
	case len(plaintext) > MaxLength:
		return ErrTooLong
	}
	return nil
}

// Hash returns a PHC-encoded Argon2id hash of plaintext under a fresh salt.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if err := CheckPolicy(plaintext); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	return phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    salt,
		key:     derive(plaintext, salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength),
	}.String(), nil
}

func derive(plaintext string, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plaintext), salt, time, memory, threads, keyLen)
}

// Verify compares plaintext against stored in constant time. A mismatch
// returns (false, nil); an unparseable hash returns an error.
func (a *Argon2) Verify(plaintext, stored string) (bool, error) {
	if isBcrypt(stored) {
		return verifyBcrypt(plaintext, stored)
	}

	p, err := parsePHC(stored)
	if err != nil {
		return false, err
	}
	key := derive(plaintext, p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsUpgrade reports whether stored should be replaced with a hash under
// the current configuration. Legacy bcrypt hashes always need it.
func (a *Argon2) NeedsUpgrade(stored string) (bool, error) {
	if isBcrypt(stored) {
		return true, nil
	}
	p, err := parsePHC(stored)
	if err != nil {
		return false, err
	}
	return p.weakerThan(a.config), nil
}
