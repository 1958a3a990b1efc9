package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/ratelimit"
	"github.com/zentity/zk-attest/server"
)

func TestNewRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		l, closeLimiter, err := server.NewRateLimiter(ctx, &server.ServeConfig{}, logger.Nop())
		require.NoError(t, err)
		defer closeLimiter()
		assert.Nil(t, l)
	})

	t.Run("memory", func(t *testing.T) {
		l, closeLimiter, err := server.NewRateLimiter(ctx, &server.ServeConfig{
			RateLimitRequests: 1,
			RateLimitWindow:   time.Minute,
		}, logger.Nop())
		require.NoError(t, err)
		defer closeLimiter()
		assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		l, closeLimiter, err := server.NewRateLimiter(ctx, &server.ServeConfig{
			Store:             server.StoreRedis,
			RedisAddr:         mr.Addr(),
			RedisPrefix:       "test",
			RateLimitRequests: 1,
			RateLimitWindow:   time.Minute,
		}, logger.Nop())
		require.NoError(t, err)
		defer closeLimiter()

		d, err := l.Allow(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, mr.Exists("test:ratelimit:k"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, _, err := server.NewRateLimiter(ctx, &server.ServeConfig{
			Store:             server.StoreRedis,
			RedisAddr:         addr,
			RateLimitRequests: 1,
			RateLimitWindow:   time.Minute,
		}, logger.Nop())
		assert.Error(t, err)
	})
}
