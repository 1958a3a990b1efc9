// Package attestation signs and verifies short-lived attestation claims.
//
// Tokens are compact HS256 JWTs. The payload travels as top-level private
// claims next to the registered iss, aud, sub, iat, exp and jti claims.
package attestation

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultIssuer   = "zentity"
	DefaultAudience = "zentity-attestation"
	DefaultTTL      = 10 * time.Minute

	// MinProductionSecretLen is the shortest secret accepted in production.
	MinProductionSecretLen = 32

	keyInfo = "zentity-attestation-claims-v1"
	keySize = 32
)

var (
	ErrWeakSecret       = errors.New("attestation secret too short")
	ErrSignerClosed     = errors.New("attestation signer closed")
	ErrMalformedToken   = errors.New("malformed attestation token")
	ErrInvalidSignature = errors.New("invalid attestation signature")
	ErrInvalidClaims    = errors.New("invalid attestation claims")

	ErrClaimTypeMismatch = errors.New("claim type mismatch")
	ErrClaimUserMismatch = errors.New("claim user mismatch")
	ErrMissingFields     = errors.New("payload missing required fields")
)

// Signer holds the derived HMAC key. It is safe for concurrent use.
type Signer struct {
	mu         sync.RWMutex
	key        []byte
	now        func() time.Time
	ttl        time.Duration
	issuer     string
	audience   string
	production bool
}

type Option func(*Signer)

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithIssuer(iss string) Option {
	return func(s *Signer) {
		if iss != "" {
			s.issuer = iss
		}
	}
}

func WithAudience(aud string) Option {
	return func(s *Signer) {
		if aud != "" {
			s.audience = aud
		}
	}
}

// WithProduction enforces MinProductionSecretLen.
func WithProduction(production bool) Option {
	return func(s *Signer) { s.production = production }
}

// DeriveSigningKey expands the application secret into the HMAC key used for
// attestation tokens.
func DeriveSigningKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrWeakSecret)
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

func NewSigner(secret []byte, opts ...Option) (*Signer, error) {
	s := &Signer{
		now:      time.Now,
		ttl:      DefaultTTL,
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.production && len(secret) < MinProductionSecretLen {
		return nil, fmt.Errorf("%w: need at least %d characters in production", ErrWeakSecret, MinProductionSecretLen)
	}

	key, err := DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	s.key = key
	return s, nil
}

// Sign issues a token for payload. Two calls with the same payload never
// produce the same token because every token gets a fresh jti.
func (s *Signer) Sign(payload Payload) (string, error) {
	w, err := payload.wire()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", fmt.Errorf("flatten payload: %w", err)
	}

	now := s.now()
	b := jwt.NewBuilder().
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		Subject(payload.UserID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		JwtID(uuid.NewString())
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return "", ErrSignerClosed
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature and registered claims before looking at the
// payload, then the expected type and user (skipped when empty), then that
// the required fields are present.
func (s *Signer) Verify(token string, expectedType ClaimType, expectedUserID string) (*Payload, error) {
	raw := []byte(strings.TrimSpace(token))
	segments := strings.Split(string(raw), ".")
	if len(segments) != 3 {
		return nil, ErrMalformedToken
	}
	// one token, one string: a segment whose unused trailing bits were
	// altered would otherwise still verify
	for _, seg := range segments {
		if !canonicalSegment(seg) {
			return nil, ErrMalformedToken
		}
	}
	if _, err := jws.Parse(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()
	if key == nil {
		return nil, ErrSignerClosed
	}

	if _, err := jws.Verify(raw, jws.WithKey(jwa.HS256, key)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	tok, err := jwt.Parse(raw,
		jwt.WithKey(jwa.HS256, key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	claims, err := json.Marshal(tok.PrivateClaims())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	var w wirePayload
	if err := json.Unmarshal(claims, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	if expectedType != "" && w.Type != expectedType {
		return nil, ErrClaimTypeMismatch
	}
	if expectedUserID != "" && w.UserID != expectedUserID {
		return nil, ErrClaimUserMismatch
	}
	if w.Type == "" || w.UserID == "" || w.IssuedAt == "" || !w.hasData() {
		return nil, ErrMissingFields
	}
	if tok.Subject() != w.UserID {
		return nil, fmt.Errorf("%w: subject does not match userId", ErrInvalidClaims)
	}

	p, err := w.payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	return p, nil
}

// Close wipes the signing key. Later calls fail with ErrSignerClosed.
func (s *Signer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
}

func canonicalSegment(seg string) bool {
	b, err := base64.RawURLEncoding.Strict().DecodeString(seg)
	if err != nil {
		return false
	}
	return base64.RawURLEncoding.EncodeToString(b) == seg
}
