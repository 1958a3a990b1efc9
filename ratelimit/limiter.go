// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits at most limit calls per key within window. A limit of zero
// or less admits everything.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

func unlimited(limit int) Decision {
	return Decision{Allowed: true, Limit: limit, Remaining: limit}
}
