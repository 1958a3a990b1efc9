package api

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/consensys/gnark/frontend"
	"github.com/zentity/zk-attest/common"
)

var ErrExternalCircuit = errors.New("circuit is compiled outside this service")

// CircuitInfo describes the artifact files for one circuit type
type CircuitInfo struct {
	Circuit     frontend.Circuit
	Dir         string
	Name        string
	Version     uint
	Description string
}

func (ci CircuitInfo) path(ext string) string {
	return filepath.Join(ci.Dir, fmt.Sprintf("%s-%d.%s", ci.Name, ci.Version, ext))
}

// Paths returns the constraint system, proving key and verifying key files.
func (ci CircuitInfo) Paths() (ccsPath, pkPath, vkPath string) {
	return ci.path("ccs"), ci.path("pk"), ci.path("vk")
}

// Compile compiles a circuit and stores the circuit information locally
func (ci CircuitInfo) Compile() error {
	if ci.Circuit == nil {
		return fmt.Errorf("%w: %s", ErrExternalCircuit, ci.Name)
	}
	ccsPath, pkPath, vkPath := ci.Paths()
	return common.SetupAndSave(ci.Circuit, ccsPath, pkPath, vkPath)
}
