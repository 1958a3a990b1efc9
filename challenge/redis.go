package challenge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zentity/zk-attest/circuitspec"
)

// redisGrace keeps a record around slightly past its expiry so that Consume,
// not redis eviction, is what decides expiry.
const redisGrace = time.Minute

// consumeScript checks every binding and deletes the record in one step.
// KEYS: record, index. ARGV: circuit type, user id, now (ms), nonce.
var consumeScript = redis.NewScript(`
local f = redis.call("HMGET", KEYS[1], "circuit_type", "user_id", "created_at", "expires_at")
if not f[1] then
  return false
end
if tonumber(ARGV[3]) >= tonumber(f[4]) then
  redis.call("DEL", KEYS[1])
  redis.call("ZREM", KEYS[2], ARGV[4])
  return false
end
if f[1] ~= ARGV[1] then
  return false
end
if f[2] ~= "" and f[2] ~= ARGV[2] then
  return false
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[4])
return {f[1], f[2], f[3], f[4]}
`)

// purgeScript drops expired records and returns {removed, remaining}.
// KEYS: index. ARGV: now (ms), record key prefix.
var purgeScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, nonce in ipairs(expired) do
  redis.call("DEL", ARGV[2] .. nonce)
end
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
return {#expired, redis.call("ZCARD", KEYS[1])}
`)

// RedisStore shares challenges between instances through redis. Consumption
// runs as a single script so only one instance can win a nonce.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock replaces time.Now.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithKeyPrefix namespaces every key. The braces keep record and index in the
// same cluster slot.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = "{" + prefix + "}:"
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisStore{
		client: client,
		now:    time.Now,
		prefix: "{zk-attest}:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) recordPrefix() string { return s.prefix + "challenge:" }
func (s *RedisStore) recordKey(nonce string) string {
	return s.recordPrefix() + nonce
}
func (s *RedisStore) indexKey() string { return s.prefix + "challenges" }

func (s *RedisStore) Create(ctx context.Context, circuitType circuitspec.Type, userID string) (Challenge, error) {
	c, err := newChallenge(circuitType, userID, s.now())
	if err != nil {
		return Challenge{}, err
	}

	key := s.recordKey(c.Nonce)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"circuit_type", string(c.CircuitType),
			"user_id", c.UserID,
			"created_at", c.CreatedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
		)
		p.PExpire(ctx, key, TTL+redisGrace)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(c.ExpiresAt.UnixMilli()), Member: c.Nonce})
		return nil
	})
	if err != nil {
		return Challenge{}, fmt.Errorf("store challenge: %w", err)
	}
	return c, nil
}

func (s *RedisStore) Consume(ctx context.Context, nonce string, circuitType circuitspec.Type, userID string) (Challenge, bool, error) {
	if !validNonce(nonce) {
		return Challenge{}, false, nil
	}
	now := s.now().UnixMilli()

	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.recordKey(nonce), s.indexKey()},
		string(circuitType), userID, now, nonce,
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, fmt.Errorf("consume challenge: %w", err)
	}
	if len(res) != 4 {
		return Challenge{}, false, errors.New("unexpected redis consume response")
	}

	createdAt, err := strconv.ParseInt(res[2], 10, 64)
	if err != nil {
		return Challenge{}, false, fmt.Errorf("decode created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(res[3], 10, 64)
	if err != nil {
		return Challenge{}, false, fmt.Errorf("decode expires_at: %w", err)
	}
	return Challenge{
		Nonce:       nonce,
		CircuitType: circuitspec.Type(res[0]),
		UserID:      res[1],
		CreatedAt:   time.UnixMilli(createdAt).UTC(),
		ExpiresAt:   time.UnixMilli(expiresAt).UTC(),
	}, true, nil
}

func (s *RedisStore) ActiveCount(ctx context.Context) (int, error) {
	_, remaining, err := s.purge(ctx)
	if err != nil {
		return 0, err
	}
	return int(remaining), nil
}

// Purge drops expired records and reports how many were removed.
func (s *RedisStore) Purge(ctx context.Context) (int64, error) {
	removed, _, err := s.purge(ctx)
	return removed, err
}

func (s *RedisStore) purge(ctx context.Context) (removed, remaining int64, err error) {
	res, err := purgeScript.Run(ctx, s.client,
		[]string{s.indexKey()},
		s.now().UnixMilli(), s.recordPrefix(),
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("purge challenges: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, errors.New("unexpected redis purge response")
	}
	return res[0], res[1], nil
}
