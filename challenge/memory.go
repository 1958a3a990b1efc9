package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/zentity/zk-attest/circuitspec"
)

// MemoryStore keeps challenges in process memory. It is only correct for a
// single instance; use RedisStore or SQLStore when several share traffic.
type MemoryStore struct {
	mu         sync.Mutex
	now        func() time.Time
	challenges map[string]Challenge
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:        time.Now,
		challenges: make(map[string]Challenge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, circuitType circuitspec.Type, userID string) (Challenge, error) {
	c, err := newChallenge(circuitType, userID, s.now())
	if err != nil {
		return Challenge{}, err
	}

	s.mu.Lock()
	s.challenges[c.Nonce] = c
	s.mu.Unlock()

	return c, nil
}

func (s *MemoryStore) Consume(_ context.Context, nonce string, circuitType circuitspec.Type, userID string) (Challenge, bool, error) {
	if !validNonce(nonce) {
		return Challenge{}, false, nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[nonce]
	if !ok {
		return Challenge{}, false, nil
	}
	if c.Expired(now) {
		delete(s.challenges, nonce)
		return Challenge{}, false, nil
	}
	if !c.matches(circuitType, userID) {
		return Challenge{}, false, nil
	}
	delete(s.challenges, nonce)
	return c, true, nil
}

func (s *MemoryStore) ActiveCount(_ context.Context) (int, error) {
	s.Sweep()

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges), nil
}

// Sweep removes expired challenges and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for nonce, c := range s.challenges {
		if c.Expired(now) {
			delete(s.challenges, nonce)
			removed++
		}
	}
	return removed
}

// Purge is Sweep in the form the janitor expects.
func (s *MemoryStore) Purge(context.Context) (int64, error) {
	return int64(s.Sweep()), nil
}
