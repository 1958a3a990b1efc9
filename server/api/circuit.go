package api

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/zentity/zk-attest/common"
	"github.com/zentity/zk-attest/field"
)

// Circuit with its verifying key. CS and ProvingKey are only present when the
// proving side was loaded too.
type Circuit struct {
	Info         CircuitInfo
	CS           constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
	Hash         string
}

// NewCircuit computes the circuit hash of vk.
func NewCircuit(info CircuitInfo, cs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (*Circuit, error) {
	hash, err := common.CircuitHash(vk)
	if err != nil {
		return nil, err
	}
	return &Circuit{
		Info:         info,
		CS:           cs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		Hash:         hash,
	}, nil
}

// Prove returns the serialized proof and the public inputs of assignment
func (c *Circuit) Prove(assignment frontend.Circuit) ([]byte, []string, error) {
	if c.CS == nil || c.ProvingKey == nil {
		return nil, nil, fmt.Errorf("circuit %s has no proving key loaded", c.Info.Name)
	}
	return common.Prove(assignment, c.CS, c.ProvingKey)
}

// Verify checks a serialized proof against public inputs given as decimal or
// 0x hex strings. A malformed proof or a non-canonical input is reported as
// invalid rather than as an error.
func (c *Circuit) Verify(proofBytes []byte, publicInputs []string) (bool, error) {
	if len(publicInputs) != c.VerifyingKey.NbPublicWitness() {
		return false, nil
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false, nil
	}

	pw, ok, err := publicWitness(publicInputs)
	if err != nil || !ok {
		return false, err
	}

	if err := groth16.Verify(proof, c.VerifyingKey, pw); err != nil {
		return false, nil
	}
	return true, nil
}

// publicWitness fills a BN254 public witness. Values at or above the field
// modulus are refused so every public input has exactly one encoding.
func publicWitness(publicInputs []string) (witness.Witness, bool, error) {
	modulus, err := field.Default().Modulus()
	if err != nil {
		return nil, false, err
	}

	values := make(chan any, len(publicInputs))
	for _, in := range publicInputs {
		v, err := field.ParseElement(in)
		if err != nil || v.Cmp(modulus) >= 0 {
			return nil, false, nil
		}
		values <- v
	}
	close(values)

	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, false, fmt.Errorf("new witness: %w", err)
	}
	if err := w.Fill(len(publicInputs), 0, values); err != nil {
		return nil, false, nil
	}
	return w, true, nil
}
