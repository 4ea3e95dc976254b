package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every grant storage failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrGrantNotFound is returned when no live grant exists for a refresh token.
// It covers never-issued, already-rotated, revoked and expired tokens alike.
var ErrGrantNotFound = errors.New("refresh grant not found")

// ErrGrantOwnerMismatch is returned when a grant exists but belongs to a
// different user than the caller claims.
var ErrGrantOwnerMismatch = errors.New("refresh grant owner mismatch")

// ErrGrantCorrupt is returned when a stored grant cannot be parsed.
var ErrGrantCorrupt = errors.New("refresh grant corrupt")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// The owner helper below mirrors the layout written by Encode.
const grantOwnerLua = `
local function grant_owner(data)
  local version = string.byte(data, 1)
  local user_len = string.byte(data, 2)
  if version ~= 1 or not user_len or user_len == 0 or #data < 2 + user_len then
    return nil
  end
  return string.sub(data, 3, 2 + user_len)
end

local function grant_expires_at(data)
  local role_at = 3 + string.byte(data, 2)
  local role_len = string.byte(data, role_at)
  if not role_len then
    return nil
  end
  local from = role_at + role_len + 9
  if #data < from + 7 then
    return nil
  end
  local v = 0
  for i = from, from + 7 do
    v = v * 256 + string.byte(data, i)
  end
  return v
end
`

const rotateGrantScript = grantOwnerLua + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local owner = grant_owner(data)
if not owner then
  return {4}
end
if owner ~= ARGV[3] then
  return {2}
end

local user_key = ARGV[6] .. owner
local expires_at = grant_expires_at(data)
if not expires_at then
  return {4}
end
if expires_at <= tonumber(ARGV[7]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key, ARGV[1])
  return {0}
end

redis.call("DEL", KEYS[1])
redis.call("SREM", user_key, ARGV[1])
redis.call("SET", KEYS[2], ARGV[4], "PX", ARGV[5])
redis.call("SADD", user_key, ARGV[2])
redis.call("PEXPIRE", user_key, ARGV[5])

return {3, data}
`

var rotateGrantLua = redis.NewScript(rotateGrantScript)

const deleteGrantScript = grantOwnerLua + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local owner = grant_owner(data)
if owner and ARGV[2] ~= "" and owner ~= ARGV[2] then
  return -1
end

redis.call("DEL", KEYS[1])
if owner then
  redis.call("SREM", ARGV[3] .. owner, ARGV[1])
end
return 1
`

var deleteGrantLua = redis.NewScript(deleteGrantScript)

const deleteAllGrantsScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, digest in ipairs(members) do
  removed = removed + redis.call("DEL", ARGV[1] .. digest)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteAllGrantsLua = redis.NewScript(deleteAllGrantsScript)

// Store is the Redis-backed refresh grant and blacklist store.
//
//	Docs: doc.go key layout
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a [Store] backed by the given Redis client. prefix sets
// the key namespace.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "authsvc"
	}
	return &Store{
		redis:  rdb,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock replaces the clock used to compute blacklist lifetimes.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenDigest returns the hex SHA-256 digest used as the storage key for token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Store) grantKey(digest string) string {
	return s.prefix + ":rt:" + digest
}

func (s *Store) userKeyPrefix() string {
	return s.prefix + ":ru:"
}

func (s *Store) userKey(userID string) string {
	return s.userKeyPrefix() + userID
}

func (s *Store) blacklistKey(digest string) string {
	return s.prefix + ":bl:" + digest
}

// Save persists a grant for token with the given TTL and indexes it under
// the owning user.
//
//	Performance: 1 MULTI/EXEC (SET + SADD + PEXPIRE).
func (s *Store) Save(ctx context.Context, token string, g *Grant, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("grant ttl must be positive")
	}
	data, err := Encode(g)
	if err != nil {
		return err
	}

	digest := TokenDigest(token)
	userKey := s.userKey(g.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.grantKey(digest), data, ttl)
		pipe.SAdd(ctx, userKey, digest)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the live grant for token.
func (s *Store) Get(ctx context.Context, token string) (*Grant, error) {
	data, err := s.redis.Get(ctx, s.grantKey(TokenDigest(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrGrantNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	g, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrGrantCorrupt, err)
	}
	if g.Expired(s.now().Unix()) {
		return nil, ErrGrantNotFound
	}
	return g, nil
}

// Rotate atomically replaces the grant for oldToken with next under
// newToken. The old grant must exist and belong to userID; otherwise nothing
// changes. The replaced grant is returned.
//
// A grant whose ExpiresAt has passed on the store clock counts as missing
// and is removed, even before Redis evicts it.
//
// When several callers race on the same oldToken exactly one succeeds; the
// rest observe [ErrGrantNotFound].
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Rotate(
	ctx context.Context,
	oldToken string,
	userID string,
	newToken string,
	next *Grant,
	ttl time.Duration,
) (*Grant, error) {
	if ttl <= 0 {
		return nil, errors.New("grant ttl must be positive")
	}
	if next == nil || next.UserID != userID {
		return nil, ErrGrantOwnerMismatch
	}
	data, err := Encode(next)
	if err != nil {
		return nil, err
	}

	oldDigest := TokenDigest(oldToken)
	newDigest := TokenDigest(newToken)

	result, err := rotateGrantLua.Run(
		ctx,
		s.redis,
		[]string{s.grantKey(oldDigest), s.grantKey(newDigest)},
		oldDigest,
		newDigest,
		userID,
		data,
		ttl.Milliseconds(),
		s.userKeyPrefix(),
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrGrantNotFound)
	case rotateStatusMismatch:
		return nil, ErrGrantOwnerMismatch
	case rotateStatusInvalidBlob:
		return nil, ErrGrantCorrupt
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing replaced grant payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid replaced grant payload", ErrRedisUnavailable)
		}

		old, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrGrantCorrupt, decErr)
		}
		return old, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Delete removes the grant for token. When userID is non-empty the grant is
// only removed if it belongs to that user. Deleting a missing grant is not
// an error; the returned bool reports whether a grant was removed.
func (s *Store) Delete(ctx context.Context, token, userID string) (bool, error) {
	digest := TokenDigest(token)

	removed, err := deleteGrantLua.Run(
		ctx,
		s.redis,
		[]string{s.grantKey(digest)},
		digest,
		userID,
		s.userKeyPrefix(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch removed {
	case 1:
		return true, nil
	case -1:
		return false, ErrGrantOwnerMismatch
	default:
		return false, nil
	}
}

// DeleteAllForUser removes every grant indexed under userID and returns how
// many live grants were deleted.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	removed, err := deleteAllGrantsLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":rt:",
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(removed), nil
}

// ActiveGrantCount returns the number of live grants for userID.
//
//	Performance: 1 SMEMBERS + 1 pipelined EXISTS batch.
func (s *Store) ActiveGrantCount(ctx context.Context, userID string) (int, error) {
	digests, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(digests) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(digests))
	for i, digest := range digests {
		existsCmds[i] = pipe.Exists(ctx, s.grantKey(digest))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var live int
	for _, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		live += int(v)
	}
	return live, nil
}

// Blacklist marks token as revoked until expiresAt. Tokens that have
// already expired are not recorded.
func (s *Store) Blacklist(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	// PX granularity; never let a sub-millisecond remainder become a zero TTL.
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	if err := s.redis.Set(ctx, s.blacklistKey(TokenDigest(token)), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether token has a live blacklist entry.
func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.blacklistKey(TokenDigest(token))).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
