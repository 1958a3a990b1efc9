package common

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// IsLess returns 1 if a < b, 0 otherwise
func IsLess(api frontend.API, a, b frontend.Variable) frontend.Variable {
	// Cmp is -1, 0 or 1
	return api.IsZero(api.Add(api.Cmp(a, b), 1))
}

// IsGreaterOrEqual returns 1 if a >= b, 0 otherwise
func IsGreaterOrEqual(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.Sub(1, IsLess(api, a, b))
}

// Bind squares v so that a public input which is only carried by the proof
// still takes part in a constraint.
func Bind(api frontend.API, v frontend.Variable) {
	_ = api.Mul(v, v)
}

// ClaimHash is MiMC(value, documentHashField), matching field.ComputeClaimHash.
func ClaimHash(api frontend.API, value, documentHashField frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(value, documentHashField)
	return h.Sum(), nil
}

// AssertClaimHash ties the public claim hash to the private claim value and
// the document it was read from.
func AssertClaimHash(api frontend.API, claimHash, value, documentHashField frontend.Variable) error {
	h, err := ClaimHash(api, value, documentHashField)
	if err != nil {
		return err
	}
	api.AssertIsEqual(claimHash, h)
	return nil
}
