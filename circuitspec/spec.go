// Package circuitspec describes where each circuit places its nonce, claim
// hash and boolean result inside the public-input array.
package circuitspec

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/zentity/zk-attest/field"
)

// Type identifies a circuit, and with it a public-input layout.
type Type string

const (
	AgeVerification       Type = "age_verification"
	DocValidity           Type = "doc_validity"
	NationalityMembership Type = "nationality_membership"
	FaceMatch             Type = "face_match"
)

var (
	ErrUnknownCircuit     = errors.New("unknown circuit type")
	ErrNotEnoughInputs    = errors.New("not enough public inputs")
	ErrInvalidPublicInput = errors.New("invalid public input")
)

// Spec is the public-input layout of one circuit. Indices must match the order
// in which the proving system emits public inputs.
type Spec struct {
	Type            Type   `json:"circuitType"`
	MinPublicInputs int    `json:"minPublicInputs"`
	NonceIndex      int    `json:"nonceIndex"`
	ClaimHashIndex  int    `json:"claimHashIndex"`
	ResultIndex     int    `json:"resultIndex"`
	Layout          string `json:"layout"`
	// ClaimHashScheme is the hash the circuit computes its claim hash with.
	ClaimHashScheme field.Scheme `json:"claimHashScheme"`
}

var registry = map[Type]Spec{
	AgeVerification: {
		Type:            AgeVerification,
		MinPublicInputs: 5,
		NonceIndex:      2,
		ClaimHashIndex:  3,
		ResultIndex:     4,
		Layout:          "[current_days, min_age_days, nonce, claim_hash, is_old_enough]",
		ClaimHashScheme: field.SchemeMiMC,
	},
	DocValidity: {
		Type:            DocValidity,
		MinPublicInputs: 4,
		NonceIndex:      1,
		ClaimHashIndex:  2,
		ResultIndex:     3,
		Layout:          "[current_date, nonce, claim_hash, is_valid]",
		ClaimHashScheme: field.SchemeMiMC,
	},
	NationalityMembership: {
		Type:            NationalityMembership,
		MinPublicInputs: 4,
		NonceIndex:      1,
		ClaimHashIndex:  2,
		ResultIndex:     3,
		Layout:          "[merkle_root, nonce, claim_hash, is_member]",
		ClaimHashScheme: field.SchemePoseidon,
	},
	FaceMatch: {
		Type:            FaceMatch,
		MinPublicInputs: 4,
		NonceIndex:      1,
		ClaimHashIndex:  2,
		ResultIndex:     3,
		Layout:          "[threshold, nonce, claim_hash, is_match]",
		ClaimHashScheme: field.SchemeMiMC,
	},
}

// IsCircuitType reports whether v names a known circuit.
func IsCircuitType(v string) bool {
	_, ok := registry[Type(v)]
	return ok
}

// ParseType converts v into a Type.
func ParseType(v string) (Type, error) {
	if !IsCircuitType(v) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCircuit, v)
	}
	return Type(v), nil
}

// Types lists every known circuit in a stable order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the layout registered for t.
func Lookup(t Type) (Spec, bool) {
	s, ok := registry[t]
	return s, ok
}

// Extracted holds the values pulled out of a public-input array.
type Extracted struct {
	Nonce     string
	ClaimHash *big.Int
	Result    bool
}

// Check validates the length of the public-input array.
func (s Spec) Check(publicInputs []string) error {
	if len(publicInputs) < s.MinPublicInputs {
		return fmt.Errorf("%w: %s expects at least %d, got %d",
			ErrNotEnoughInputs, s.Type, s.MinPublicInputs, len(publicInputs))
	}
	return nil
}

// Nonce returns the normalized challenge nonce.
func (s Spec) Nonce(publicInputs []string) (string, error) {
	if err := s.Check(publicInputs); err != nil {
		return "", err
	}
	return NormalizeChallengeNonce(publicInputs[s.NonceIndex])
}

// ClaimHash returns the claim hash as an integer.
func (s Spec) ClaimHash(publicInputs []string) (*big.Int, error) {
	if err := s.Check(publicInputs); err != nil {
		return nil, err
	}
	return ParsePublicInputBigInt(publicInputs[s.ClaimHashIndex])
}

// Result returns the boolean the circuit asserted. Anything other than 0 or 1
// is rejected.
func (s Spec) Result(publicInputs []string) (bool, error) {
	if err := s.Check(publicInputs); err != nil {
		return false, err
	}
	v, err := ParsePublicInputBigInt(publicInputs[s.ResultIndex])
	if err != nil {
		return false, err
	}
	switch {
	case v.Cmp(big.NewInt(1)) == 0:
		return true, nil
	case v.Sign() == 0:
		return false, nil
	}
	return false, fmt.Errorf("%w: result must be 0 or 1, got %s", ErrInvalidPublicInput, v)
}

// Extract pulls nonce, claim hash and result in one pass.
func (s Spec) Extract(publicInputs []string) (Extracted, error) {
	nonce, err := s.Nonce(publicInputs)
	if err != nil {
		return Extracted{}, err
	}
	claimHash, err := s.ClaimHash(publicInputs)
	if err != nil {
		return Extracted{}, err
	}
	result, err := s.Result(publicInputs)
	if err != nil {
		return Extracted{}, err
	}
	return Extracted{Nonce: nonce, ClaimHash: claimHash, Result: result}, nil
}
