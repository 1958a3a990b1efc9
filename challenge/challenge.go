// Package challenge issues and consumes single-use nonces that bind a proof
// attempt to a circuit type and, optionally, a user.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zentity/zk-attest/circuitspec"
)

// TTL is how long a challenge stays consumable.
const TTL = 15 * time.Minute

// NonceBytes is the size of a nonce before hex encoding.
const NonceBytes = 16

// Challenge authorizes exactly one proof-generation attempt.
type Challenge struct {
	Nonce       string           `json:"nonce"`
	CircuitType circuitspec.Type `json:"circuitType"`
	UserID      string           `json:"userId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// Expired reports whether the challenge can no longer be consumed at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// matches applies the binding rules shared by every store. A stored user
// binding must be matched exactly; an unbound challenge accepts any caller.
func (c Challenge) matches(circuitType circuitspec.Type, userID string) bool {
	if c.CircuitType != circuitType {
		return false
	}
	if c.UserID != "" && c.UserID != userID {
		return false
	}
	return true
}

// Store is single-use, time-boxed nonce storage. Consume must let at most one
// caller succeed for a given nonce, including across processes for shared
// implementations.
type Store interface {
	// Create issues a fresh challenge.
	Create(ctx context.Context, circuitType circuitspec.Type, userID string) (Challenge, error)
	// Consume removes and returns the challenge when every binding holds.
	// A rejected nonce yields ok == false and a nil error.
	Consume(ctx context.Context, nonce string, circuitType circuitspec.Type, userID string) (Challenge, bool, error)
	// ActiveCount purges expired challenges and counts the rest.
	ActiveCount(ctx context.Context) (int, error)
}

// NewNonce returns 128 random bits as 32 lowercase hex characters.
func NewNonce() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func newChallenge(circuitType circuitspec.Type, userID string, now time.Time) (Challenge, error) {
	if !circuitspec.IsCircuitType(string(circuitType)) {
		return Challenge{}, fmt.Errorf("%w: %q", circuitspec.ErrUnknownCircuit, circuitType)
	}
	nonce, err := NewNonce()
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{
		Nonce:       nonce,
		CircuitType: circuitType,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}, nil
}

func validNonce(nonce string) bool {
	if len(nonce) != 2*NonceBytes {
		return false
	}
	for _, r := range nonce {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
