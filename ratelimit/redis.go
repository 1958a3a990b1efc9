package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript increments the counter and starts its window on first use.
// KEYS: counter. ARGV: window (ms). Returns {count, ttl ms}.
var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares counters between instances through redis.
type RedisLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
	prefix string
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock replaces time.Now when computing ResetAt.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithKeyPrefix namespaces the counters.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) {
		if prefix != "" {
			r.prefix = prefix + ":ratelimit:"
		}
	}
}

func NewRedisLimiter(client redis.UniversalClient, opts ...RedisOption) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	r := &RedisLimiter{
		client: client,
		now:    time.Now,
		prefix: "zk-attest:ratelimit:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1000
	}

	res, err := allowScript.Run(ctx, r.client, []string{r.prefix + key}, windowMs).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, errors.New("unexpected redis rate limit response")
	}
	current, ttlMs := res[0], res[1]

	resetAt := r.now()
	if ttlMs > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMs) * time.Millisecond)
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
