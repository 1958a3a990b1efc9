package common

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Compile builds the R1CS for a circuit over BN254. Public inputs that only
// bind a value (nonce, claim hash) are allowed to stay unconstrained.
func Compile(circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuitTemplate,
		frontend.IgnoreUnconstrainedInputs())
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	return ccs, nil
}

// Setup compiles a circuit and runs the groth16 setup in memory
func Setup(circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := Compile(circuitTemplate)
	if err != nil {
		return nil, nil, nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return ccs, pk, vk, nil
}

// Save compiled circuit and keys
func SetupAndSave(circuitTemplate frontend.Circuit, ccsPath, pkPath, vkPath string) error {
	ccs, pk, vk, err := Setup(circuitTemplate)
	if err != nil {
		return err
	}

	if err := writeTo(ccsPath, ccs); err != nil {
		return fmt.Errorf("save constraint system: %w", err)
	}
	if err := writeTo(pkPath, pk); err != nil {
		return fmt.Errorf("save proving key: %w", err)
	}
	if err := writeTo(vkPath, vk); err != nil {
		return fmt.Errorf("save verifying key: %w", err)
	}
	return nil
}

// Load pre-compiled circuit and keys
func LoadSetup(ccsPath, pkPath, vkPath string) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(ccsPath, ccs); err != nil {
		return nil, nil, nil, fmt.Errorf("load constraint system: %w", err)
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(pkPath, pk); err != nil {
		return nil, nil, nil, fmt.Errorf("load proving key: %w", err)
	}

	vk, err := LoadVerifyingKey(vkPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return ccs, pk, vk, nil
}

// LoadVerifyingKey reads only the verifying key, all a verifier needs
func LoadVerifyingKey(vkPath string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk); err != nil {
		return nil, fmt.Errorf("load verifying key: %w", err)
	}
	return vk, nil
}

// CircuitHash is the hex SHA-256 of the serialized verifying key. It changes
// whenever the circuit or its setup changes.
func CircuitHash(vk groth16.VerifyingKey) (string, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serialize verifying key: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.ReadFrom(f)
	return err
}
