package challenge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
)

type storeFactory func(t *testing.T, clock *fakeClock) challenge.Store

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("nonces are unique and well formed", func(t *testing.T) {
		clock := newFakeClock()
		store := newStore(t, clock)

		seen := make(map[string]bool)
		for i := 0; i < 10; i++ {
			c, err := store.Create(ctx, circuitspec.AgeVerification, "")
			require.NoError(t, err)
			assert.Len(t, c.Nonce, 32)
			assert.Regexp(t, "^[0-9a-f]{32}$", c.Nonce)
			assert.False(t, seen[c.Nonce], "duplicate nonce %s", c.Nonce)
			seen[c.Nonce] = true
			assert.Equal(t, clock.Now(), c.CreatedAt)
			assert.Equal(t, clock.Now().Add(challenge.TTL), c.ExpiresAt)
		}
	})

	t.Run("unknown circuit is refused at creation", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		_, err := store.Create(ctx, circuitspec.Type("liveness"), "")
		assert.ErrorIs(t, err, circuitspec.ErrUnknownCircuit)
	})

	t.Run("single use", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		c, err := store.Create(ctx, circuitspec.AgeVerification, "")
		require.NoError(t, err)

		got, ok, err := store.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, c.Nonce, got.Nonce)
		assert.Equal(t, c.CircuitType, got.CircuitType)
		assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt))

		_, ok, err = store.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "")
		require.NoError(t, err)
		assert.False(t, ok, "replay must be rejected")
	})

	t.Run("unknown and malformed nonces are rejected", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		for _, nonce := range []string{"", "00000000000000000000000000000000", "XYZ", "0x1234"} {
			_, ok, err := store.Consume(ctx, nonce, circuitspec.AgeVerification, "")
			require.NoError(t, err)
			assert.False(t, ok, nonce)
		}
	})

	t.Run("circuit type binding", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		c, err := store.Create(ctx, circuitspec.AgeVerification, "")
		require.NoError(t, err)

		_, ok, err := store.Consume(ctx, c.Nonce, circuitspec.DocValidity, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("user binding", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		c, err := store.Create(ctx, circuitspec.AgeVerification, "user-123")
		require.NoError(t, err)

		_, ok, err := store.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "user-456")
		require.NoError(t, err)
		assert.False(t, ok, "other user")

		_, ok, err = store.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "")
		require.NoError(t, err)
		assert.False(t, ok, "no user")

		got, ok, err := store.Consume(ctx, c.Nonce, circuitspec.AgeVerification, "user-123")
		require.NoError(t, err)
		assert.True(t, ok, "bound user")
		assert.Equal(t, "user-123", got.UserID)
	})

	t.Run("unbound challenge accepts any caller", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		c, err := store.Create(ctx, circuitspec.FaceMatch, "")
		require.NoError(t, err)

		_, ok, err := store.Consume(ctx, c.Nonce, circuitspec.FaceMatch, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expiry boundary", func(t *testing.T) {
		clock := newFakeClock()
		store := newStore(t, clock)
		start := clock.Now()

		before, err := store.Create(ctx, circuitspec.DocValidity, "")
		require.NoError(t, err)
		after, err := store.Create(ctx, circuitspec.DocValidity, "")
		require.NoError(t, err)

		clock.Set(start.Add(challenge.TTL - time.Millisecond))
		_, ok, err := store.Consume(ctx, before.Nonce, circuitspec.DocValidity, "")
		require.NoError(t, err)
		assert.True(t, ok, "1ms before expiry")

		clock.Set(start.Add(challenge.TTL + time.Millisecond))
		_, ok, err = store.Consume(ctx, after.Nonce, circuitspec.DocValidity, "")
		require.NoError(t, err)
		assert.False(t, ok, "1ms after expiry")
	})

	t.Run("expires exactly at ttl", func(t *testing.T) {
		clock := newFakeClock()
		store := newStore(t, clock)
		c, err := store.Create(ctx, circuitspec.DocValidity, "")
		require.NoError(t, err)

		clock.Set(c.ExpiresAt)
		_, ok, err := store.Consume(ctx, c.Nonce, circuitspec.DocValidity, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("active count accounting", func(t *testing.T) {
		clock := newFakeClock()
		store := newStore(t, clock)

		base, err := store.ActiveCount(ctx)
		require.NoError(t, err)

		first, err := store.Create(ctx, circuitspec.NationalityMembership, "")
		require.NoError(t, err)
		clock.Advance(time.Minute)
		var last challenge.Challenge
		for i := 0; i < 4; i++ {
			last, err = store.Create(ctx, circuitspec.NationalityMembership, "")
			require.NoError(t, err)
		}

		n, err := store.ActiveCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, base+5, n)

		_, ok, err := store.Consume(ctx, last.Nonce, circuitspec.NationalityMembership, "")
		require.NoError(t, err)
		require.True(t, ok)

		n, err = store.ActiveCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, base+4, n)

		// only the first one crosses its expiry
		clock.Set(first.ExpiresAt)
		n, err = store.ActiveCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, base+3, n)
	})
}
