package authsvc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memUserStore is a mutex-guarded UserStore with the same conditional-update
// semantics as the SQL store.
type memUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	pingErr error

	// onRead, when set, runs once after the next successful lookup by ID or
	// email, outside the lock. Tests use it to interleave a competing write.
	onRead func(*User)
}

func (m *memUserStore) afterRead(u *User) (*User, error) {
	m.mu.Lock()
	hook := m.onRead
	m.onRead = nil
	m.mu.Unlock()
	if hook != nil {
		hook(u)
	}
	return u, nil
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[string]*User{}}
}

func cloneUser(u *User) *User {
	c := *u
	if u.Code != nil {
		code := *u.Code
		c.Code = &code
	}
	c.TOTPSecret = cloneBytes(u.TOTPSecret)
	return &c
}

func (m *memUserStore) CreateUser(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.byID[u.ID] = cloneUser(u)
	return nil
}

func (m *memUserStore) GetUserByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	u, ok := m.byID[userID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrUserNotFound
	}
	c := cloneUser(u)
	m.mu.Unlock()
	return m.afterRead(c)
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	var found *User
	for _, u := range m.byID {
		if u.Email == email {
			found = cloneUser(u)
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, ErrUserNotFound
	}
	return m.afterRead(found)
}

func (m *memUserStore) GetUserByProvider(_ context.Context, provider, subject string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Provider == provider && u.ProviderSubject == subject {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUserStore) update(userID string, fn func(*User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	return fn(u)
}

func (m *memUserStore) SetOneTimeCode(_ context.Context, userID string, code OneTimeCode) error {
	return m.update(userID, func(u *User) error {
		u.Code = &code
		return nil
	})
}

func consumeCode(u *User, purpose CodePurpose, codeHash string, now time.Time) error {
	if u.Code == nil || u.Code.Purpose != purpose || u.Code.Hash != codeHash || !u.Code.ExpiresAt.After(now) {
		return ErrInvalidOrExpiredCode
	}
	u.Code = nil
	return nil
}

func (m *memUserStore) ConsumeVerificationCode(_ context.Context, userID, codeHash string, now time.Time) error {
	return m.update(userID, func(u *User) error {
		if err := consumeCode(u, CodePurposeVerifyEmail, codeHash, now); err != nil {
			return err
		}
		u.Verified = true
		return nil
	})
}

func (m *memUserStore) ResetPasswordWithCode(_ context.Context, userID, codeHash, newHash string, now time.Time) error {
	return m.update(userID, func(u *User) error {
		if err := consumeCode(u, CodePurposePasswordReset, codeHash, now); err != nil {
			return err
		}
		u.PasswordHash = newHash
		return nil
	})
}

func (m *memUserStore) UpdatePasswordHash(_ context.Context, userID, oldHash, newHash string) error {
	return m.update(userID, func(u *User) error {
		if u.PasswordHash != oldHash {
			return ErrInvalidCredentials
		}
		u.PasswordHash = newHash
		return nil
	})
}

func (m *memUserStore) SetPendingTOTPSecret(_ context.Context, userID string, secret []byte) error {
	return m.update(userID, func(u *User) error {
		if u.TOTPEnabled {
			return ErrTOTPAlreadyEnabled
		}
		u.TOTPSecret = cloneBytes(secret)
		return nil
	})
}

func (m *memUserStore) EnableTOTP(_ context.Context, userID string, secret []byte, counter int64) error {
	return m.update(userID, func(u *User) error {
		switch {
		case u.TOTPEnabled:
			return ErrTOTPAlreadyEnabled
		case len(u.TOTPSecret) == 0 || len(secret) == 0:
			return ErrTOTPNotConfigured
		case !bytes.Equal(u.TOTPSecret, secret):
			return ErrTOTPInvalid
		}
		u.TOTPEnabled = true
		u.TOTPLastCounter = counter
		return nil
	})
}

func (m *memUserStore) DisableTOTP(_ context.Context, userID string) error {
	return m.update(userID, func(u *User) error {
		u.TOTPEnabled = false
		u.TOTPSecret = nil
		u.TOTPLastCounter = 0
		return nil
	})
}

func (m *memUserStore) AdvanceTOTPCounter(_ context.Context, userID string, counter int64) error {
	return m.update(userID, func(u *User) error {
		if counter <= u.TOTPLastCounter {
			return ErrTOTPInvalid
		}
		u.TOTPLastCounter = counter
		return nil
	})
}

func (m *memUserStore) LinkProvider(_ context.Context, userID, provider, subject string) error {
	return m.update(userID, func(u *User) error {
		u.Provider = provider
		u.ProviderSubject = subject
		u.Verified = true
		return nil
	})
}

func (m *memUserStore) Ping(context.Context) error { return m.pingErr }

func (m *memUserStore) raw(t *testing.T, email string) *User {
	t.Helper()
	u, err := m.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s not stored: %v", email, err)
	}
	return u
}

// captureMailer records every message and optionally fails.
type captureMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (c *captureMailer) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

var codePattern = regexp.MustCompile(`code is (\d+)`)

// lastCode returns the most recent code mailed to addr.
func (c *captureMailer) lastCode(t *testing.T, addr string) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To != addr {
			continue
		}
		if m := codePattern.FindStringSubmatch(c.sent[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no code mailed to %s", addr)
	return ""
}

func (c *captureMailer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineHarness struct {
	engine *Engine
	redis  *miniredis.Miniredis
	users  *memUserStore
	mail   *captureMailer
	clock  *fakeClock
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *engineHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := validTestConfig()
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	h := &engineHarness{
		redis: mr,
		users: newMemUserStore(),
		mail:  &captureMailer{},
		clock: &fakeClock{now: time.Now().Truncate(time.Second)},
	}

	rcfg := rate.DefaultConfig()
	rcfg.KeyPrefix = cfg.Session.RedisPrefix
	rcfg.CodeMaxRequests = 100

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(h.users).
		WithMailer(h.mail).
		WithRateLimiter(rate.New(rdb, rcfg)).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	h.engine = engine
	return h
}

// register creates a user and returns its view.
func (h *engineHarness) register(t *testing.T, name, email, pass string) *UserView {
	t.Helper()
	view, err := h.engine.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: pass})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return view
}

func (h *engineHarness) login(t *testing.T, email, pass string) *TokenPair {
	t.Helper()
	pair, err := h.engine.Login(context.Background(), LoginInput{Email: email, Password: pass})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return pair
}

func requireKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("expected %v error, got %v (%v)", want, got, err)
	}
}

func requireIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
