package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/ratelimit"
)

// NewRateLimiter returns nil when rate limiting is disabled. With the redis
// challenge store the counters are kept in the same redis so every instance
// shares them.
func NewRateLimiter(ctx context.Context, cfg *ServeConfig, log logger.Logger) (ratelimit.Limiter, func() error, error) {
	noop := func() error { return nil }

	if cfg.RateLimitRequests <= 0 {
		log.Warn("Rate limiting disabled")
		return nil, noop, nil
	}

	if cfg.Store != StoreRedis {
		return ratelimit.NewMemoryLimiter(), noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	limiter, err := ratelimit.NewRedisLimiter(client, ratelimit.WithKeyPrefix(cfg.RedisPrefix))
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return limiter, client.Close, nil
}
