// Package envelope seals secrets with XChaCha20-Poly1305 under keys derived
// from a user's credential material.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of every key this package produces or accepts.
const KeySize = chacha20poly1305.KeySize

var (
	ErrInvalidKey     = errors.New("envelope key must be 32 bytes")
	ErrCiphertext     = errors.New("envelope ciphertext too short")
	ErrDecrypt        = errors.New("envelope authentication failed")
	ErrUnknownSource  = errors.New("unknown credential source")
	ErrMissingSecret  = errors.New("credential secret is required")
	ErrMissingSubject = errors.New("user id is required")
)

// Source is the kind of credential a key is derived from.
type Source int

const (
	SourcePasskeyPRF Source = iota + 1
	SourceOpaqueExport
	SourceWalletSignature
)

var sourceContexts = map[Source]string{
	SourcePasskeyPRF:      "zentity-passkey-prf-kek-v1",
	SourceOpaqueExport:    "zentity-opaque-export-kek-v1",
	SourceWalletSignature: "zentity-wallet-signature-kek-v1",
}

// Context returns the domain separation string for s.
func (s Source) Context() (string, error) {
	c, ok := sourceContexts[s]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownSource, s)
	}
	return c, nil
}

func (s Source) String() string {
	switch s {
	case SourcePasskeyPRF:
		return "passkey_prf"
	case SourceOpaqueExport:
		return "opaque_export"
	case SourceWalletSignature:
		return "wallet_signature"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// DeriveKey runs HKDF-SHA256 over secret with salt SHA-256(userID) and info
// "<context>|<userID>". Keys for different sources or users never coincide.
func DeriveKey(source Source, secret []byte, userID string) ([]byte, error) {
	info, err := source.Context()
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if userID == "" {
		return nil, ErrMissingSubject
	}

	salt := sha256.Sum256([]byte(userID))
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, secret, salt[:], []byte(info+"|"+userID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext and returns nonce || ciphertext.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKey
	}
	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(out, out, plaintext, aad), nil
}

// Open reverses Seal. Any tampering, wrong key or wrong aad fails with
// ErrDecrypt.
func Open(key, sealed, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// WrapKey seals dataKey under the key derived from the credential. The
// wrapped form is only usable with the same source, secret and user.
func WrapKey(source Source, secret []byte, userID string, dataKey []byte) ([]byte, error) {
	if len(dataKey) != KeySize {
		return nil, ErrInvalidKey
	}
	kek, err := DeriveKey(source, secret, userID)
	if err != nil {
		return nil, err
	}
	defer wipe(kek)
	return Seal(kek, dataKey, wrapAAD(source, userID))
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(source Source, secret []byte, userID string, wrapped []byte) ([]byte, error) {
	kek, err := DeriveKey(source, secret, userID)
	if err != nil {
		return nil, err
	}
	defer wipe(kek)
	return Open(kek, wrapped, wrapAAD(source, userID))
}

// NewDataKey returns a random key suitable for Seal.
func NewDataKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	return k, nil
}

func wrapAAD(source Source, userID string) []byte {
	return []byte(sourceContexts[source] + "|" + userID)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
