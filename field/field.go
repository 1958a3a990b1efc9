// Package field binds claim values to identity documents inside the BN254
// scalar field used by the proving system.
package field

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

var (
	ErrInvalidHex    = errors.New("invalid hex input")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrUnknownScheme = errors.New("unknown claim hash scheme")
)

// Scheme names the two-input hash a circuit uses for its claim hash.
type Scheme string

const (
	// SchemeMiMC is BN254 MiMC, recomputed inside the gnark circuits of this
	// repository (std/hash/mimc).
	SchemeMiMC Scheme = "mimc"
	// SchemePoseidon is iden3 Poseidon, used by circuits proved elsewhere.
	SchemePoseidon Scheme = "poseidon"
)

// Backend holds the field modulus and the hash constants. It is built once,
// on first use, and shared by every caller that holds it.
type Backend struct {
	once    sync.Once
	modulus *big.Int
	initErr error
}

// NewBackend returns an uninitialised backend. The expensive part runs on the
// first hash or reduction.
func NewBackend() *Backend {
	return &Backend{}
}

var defaultBackend = NewBackend()

// Default returns the process-wide backend.
func Default() *Backend {
	return defaultBackend
}

func (b *Backend) init() error {
	b.once.Do(func() {
		b.modulus = fr.Modulus()
		// force the round constants to load so the first request does not pay for it
		_, b.initErr = poseidon.Hash([]*big.Int{big.NewInt(0), big.NewInt(0)})
	})
	return b.initErr
}

// Modulus returns a copy of the scalar field modulus.
func (b *Backend) Modulus() (*big.Int, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(b.modulus), nil
}

// Reduce maps v into [0, p).
func (b *Backend) Reduce(v *big.Int) (*big.Int, error) {
	if v == nil {
		return nil, ErrInvalidValue
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	var e fr.Element
	e.SetBigInt(v)
	return e.BigInt(new(big.Int)), nil
}

// ReduceHashToField parses a hex digest (with or without 0x) and returns the
// decimal encoding of the digest reduced modulo the field.
func (b *Backend) ReduceHashToField(hashHex string) (string, error) {
	v, err := parseHex(hashHex)
	if err != nil {
		return "", err
	}
	r, err := b.Reduce(v)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// ComputeClaimHash returns MiMC(value, documentHashField) as 0x-prefixed, 64
// character lowercase hex.
func (b *Backend) ComputeClaimHash(value, documentHashField *big.Int) (string, error) {
	return b.ClaimHash(SchemeMiMC, value, documentHashField)
}

// ClaimHash is ComputeClaimHash with an explicit scheme.
func (b *Backend) ClaimHash(scheme Scheme, value, documentHashField *big.Int) (string, error) {
	v, err := b.Reduce(value)
	if err != nil {
		return "", fmt.Errorf("claim value: %w", err)
	}
	d, err := b.Reduce(documentHashField)
	if err != nil {
		return "", fmt.Errorf("document hash field: %w", err)
	}

	var h *big.Int
	switch scheme {
	case SchemeMiMC, "":
		h, err = mimcHash(v, d)
	case SchemePoseidon:
		h, err = poseidon.Hash([]*big.Int{v, d})
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", scheme, err)
	}
	return EncodeHex(h), nil
}

// mimcHash absorbs each reduced input as one 32 byte big-endian block, the
// same way the in-circuit hasher absorbs one variable.
func mimcHash(inputs ...*big.Int) (*big.Int, error) {
	h := mimc.NewMiMC()
	for _, in := range inputs {
		var e fr.Element
		e.SetBigInt(in)
		block := e.Bytes()
		if _, err := h.Write(block[:]); err != nil {
			return nil, err
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Equal reports whether two encodings (decimal or 0x hex) name the same field
// element.
func (b *Backend) Equal(x, y string) (bool, error) {
	xv, err := ParseElement(x)
	if err != nil {
		return false, err
	}
	yv, err := ParseElement(y)
	if err != nil {
		return false, err
	}
	xr, err := b.Reduce(xv)
	if err != nil {
		return false, err
	}
	yr, err := b.Reduce(yv)
	if err != nil {
		return false, err
	}
	return xr.Cmp(yr) == 0, nil
}

// ReduceHashToField uses the default backend.
func ReduceHashToField(hashHex string) (string, error) {
	return defaultBackend.ReduceHashToField(hashHex)
}

// ComputeClaimHash uses the default backend.
func ComputeClaimHash(value, documentHashField *big.Int) (string, error) {
	return defaultBackend.ComputeClaimHash(value, documentHashField)
}

// EncodeHex renders v as 0x followed by 64 lowercase hex characters.
func EncodeHex(v *big.Int) string {
	return fmt.Sprintf("0x%064x", v)
}

// ParseElement accepts a decimal numeral or a 0x-prefixed hex numeral.
func ParseElement(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidValue
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return parseHex(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return v, nil
}

func parseHex(s string) (*big.Int, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if h == "" {
		return nil, ErrInvalidHex
	}
	v, ok := new(big.Int).SetString(h, 16)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return v, nil
}
