package challenge_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) challenge.Store {
		store, err := challenge.NewRedisStore(newRedisClient(t), challenge.WithRedisClock(clock.Now))
		require.NoError(t, err)
		return store
	})
}

func TestRedisStoreRequiresClient(t *testing.T) {
	_, err := challenge.NewRedisStore(nil)
	assert.Error(t, err)
}

func TestRedisStoreSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)

	issuer, err := challenge.NewRedisStore(client, challenge.WithKeyPrefix("shared"))
	require.NoError(t, err)
	c, err := issuer.Create(ctx, circuitspec.AgeVerification, "user-1")
	require.NoError(t, err)

	instances := make([]*challenge.RedisStore, 8)
	for i := range instances {
		instances[i], err = challenge.NewRedisStore(client, challenge.WithKeyPrefix("shared"))
		require.NoError(t, err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, s := range instances {
		wg.Add(1)
		go func(s *challenge.RedisStore) {
			defer wg.Done()
			_, ok, err := s.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "user-1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(s)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	other, err := challenge.NewRedisStore(client, challenge.WithKeyPrefix("other"))
	require.NoError(t, err)
	n, err := other.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
