package common

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

// Prove creates the witness for assignment and returns the serialized proof
// together with the public inputs as decimal strings, in circuit order.
func Prove(assignment frontend.Circuit, ccs constraint.ConstraintSystem, pk groth16.ProvingKey) ([]byte, []string, error) {
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("witness creation failed: %w", err)
	}

	proof, err := groth16.Prove(ccs, pk, w)
	if err != nil {
		return nil, nil, fmt.Errorf("proof creation failed: %w", err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, nil, fmt.Errorf("proof to buffer failed: %w", err)
	}

	public, err := w.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("public witness: %w", err)
	}
	inputs, err := PublicInputs(public)
	if err != nil {
		return nil, nil, err
	}
	return proofBuf.Bytes(), inputs, nil
}

// PublicInputs renders a public witness as decimal strings
func PublicInputs(public witness.Witness) ([]string, error) {
	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected witness vector %T", public.Vector())
	}
	out := make([]string, len(vec))
	for i := range vec {
		var b big.Int
		vec[i].BigInt(&b)
		out[i] = b.String()
	}
	return out, nil
}
