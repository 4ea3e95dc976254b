package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsvc"
)

// ErrStateNotFound is returned when a state was never issued, has expired or
// was already used.
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore keeps pending authorization requests in Redis.
type StateStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStateStore returns a store whose entries live for ttl.
func NewStateStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *StateStore {
	if prefix == "" {
		prefix = "authsvc"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{redis: rdb, prefix: prefix, ttl: ttl}
}

func (s *StateStore) key(state string) string {
	return s.prefix + ":oauth:" + state
}

// Save records verifier under state.
func (s *StateStore) Save(ctx context.Context, state, verifier string) error {
	ok, err := s.redis.SetNX(ctx, s.key(state), verifier, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", authsvc.ErrStoreUnavailable, err)
	}
	if !ok {
		return errors.New("oauth state collision")
	}
	return nil
}

// Consume returns the verifier for state and deletes it in one step, so a
// state is redeemable once.
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateNotFound
	}
	verifier, err := s.redis.GetDel(ctx, s.key(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", fmt.Errorf("%w: %v", authsvc.ErrStoreUnavailable, err)
	}
	return verifier, nil
}
