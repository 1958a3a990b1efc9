package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/common"
	"github.com/zentity/zk-attest/models"
	"github.com/zentity/zk-attest/verification"
)

var ErrCircuitNotLoaded = errors.New("circuit not loaded")

var (
	_ verification.ProofVerifier = (*CircuitRegistry)(nil)
	_ models.ArtifactRegistry    = (*CircuitRegistry)(nil)
)

// CircuitRegistry stores loaded circuits by circuit type
type CircuitRegistry struct {
	mu       sync.RWMutex
	Circuits map[circuitspec.Type]*Circuit
}

// NewCircuitRegistry creates a new registry
func NewCircuitRegistry() *CircuitRegistry {
	return &CircuitRegistry{
		Circuits: make(map[circuitspec.Type]*Circuit),
	}
}

// LoadCircuit reads the verifying key for ct from dir. With withProver the
// constraint system and proving key are loaded as well.
func (cr *CircuitRegistry) LoadCircuit(ct circuitspec.Type, dir string, withProver bool) error {
	ci, ok := CircuitList[ct]
	if !ok {
		return fmt.Errorf("%w: %s", circuitspec.ErrUnknownCircuit, ct)
	}
	ci.Dir = dir
	ccsPath, pkPath, vkPath := ci.Paths()

	var c *Circuit
	if withProver {
		cs, pk, vk, err := common.LoadSetup(ccsPath, pkPath, vkPath)
		if err != nil {
			return fmt.Errorf("failed to load the circuit: %w", err)
		}
		if c, err = NewCircuit(ci, cs, pk, vk); err != nil {
			return err
		}
	} else {
		vk, err := common.LoadVerifyingKey(vkPath)
		if err != nil {
			return fmt.Errorf("failed to load the circuit: %w", err)
		}
		if c, err = NewCircuit(ci, nil, nil, vk); err != nil {
			return err
		}
	}
	return cr.Register(ct, c)
}

// Get returns a circuit by type
func (cr *CircuitRegistry) Get(ct circuitspec.Type) (*Circuit, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if c, ok := cr.Circuits[ct]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCircuitNotLoaded, ct)
}

// Register registers a loaded circuit for its type
func (cr *CircuitRegistry) Register(ct circuitspec.Type, circuit *Circuit) error {
	if !circuitspec.IsCircuitType(string(ct)) {
		return fmt.Errorf("%w: %s", circuitspec.ErrUnknownCircuit, ct)
	}
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, ok := cr.Circuits[ct]; ok {
		return fmt.Errorf("circuit %s already registered", ct)
	}
	cr.Circuits[ct] = circuit
	return nil
}

// VerifyProof implements verification.ProofVerifier.
func (cr *CircuitRegistry) VerifyProof(_ context.Context, ct circuitspec.Type, proof []byte, publicInputs []string) (bool, error) {
	c, err := cr.Get(ct)
	if err != nil {
		return false, err
	}
	return c.Verify(proof, publicInputs)
}

// Artifact implements models.ArtifactRegistry.
func (cr *CircuitRegistry) Artifact(circuitType string) (models.CircuitArtifact, bool) {
	ct := circuitspec.Type(circuitType)
	info, ok := CircuitList[ct]
	if !ok {
		return models.CircuitArtifact{}, false
	}
	a := models.CircuitArtifact{
		CircuitType: circuitType,
		Name:        info.Name,
		Version:     info.Version,
		Description: info.Description,
	}

	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if c, ok := cr.Circuits[ct]; ok {
		a.Loaded = true
		a.CircuitHash = c.Hash
		a.Version = c.Info.Version
	}
	return a, true
}

// Artifacts implements models.ArtifactRegistry.
func (cr *CircuitRegistry) Artifacts() []models.CircuitArtifact {
	types := make([]string, 0, len(CircuitList))
	for ct := range CircuitList {
		types = append(types, string(ct))
	}
	sort.Strings(types)

	out := make([]models.CircuitArtifact, 0, len(types))
	for _, ct := range types {
		a, _ := cr.Artifact(ct)
		out = append(out, a)
	}
	return out
}
