package models

// ArtifactRegistry exposes the circuit artifacts a verifier has loaded
type ArtifactRegistry interface {
	// Artifact returns the metadata for one circuit type
	Artifact(circuitType string) (CircuitArtifact, bool)
	// Artifacts lists every known circuit, loaded or not
	Artifacts() []CircuitArtifact
}

// CircuitArtifact describes the compiled circuit behind a circuit type. It is
// used to tag verification results, never to decide them.
type CircuitArtifact struct {
	CircuitType string `json:"circuitType"`
	Name        string `json:"name"`
	Version     uint   `json:"version"`
	Description string `json:"description,omitempty"`
	// CircuitHash is the hex SHA-256 of the serialized verifying key
	CircuitHash string `json:"circuitHash,omitempty"`
	Loaded      bool   `json:"loaded"`
}
