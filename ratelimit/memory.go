package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxKeys bounds the number of windows a MemoryLimiter tracks.
const DefaultMaxKeys = 10000

type memoryWindow struct {
	count int
	end   time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are per instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*memoryWindow
	maxKeys int
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMaxKeys caps the tracked keys. Once full, Allow fails for new keys until
// a window expires.
func WithMaxKeys(n int) MemoryOption {
	return func(m *MemoryLimiter) {
		if n > 0 {
			m.maxKeys = n
		}
	}
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		now:     time.Now,
		windows: make(map[string]*memoryWindow),
		maxKeys: DefaultMaxKeys,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && !now.Before(w.end) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.gc(now)
		}
		if len(m.windows) >= m.maxKeys {
			return Decision{}, ErrCapacityExceeded
		}
		w = &memoryWindow{end: now.Add(window)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.end}, nil
	}
	w.count++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.end}, nil
}

func (m *MemoryLimiter) gc(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.end) {
			delete(m.windows, key)
		}
	}
}
