package models

import (
	"encoding/json"
	"time"
)

// VerificationEvent is published after a proof has been accepted
type VerificationEvent struct {
	ID             string    `json:"id"`
	CircuitType    string    `json:"circuitType"`
	UserID         string    `json:"userId,omitempty"`
	Nonce          string    `json:"nonce"`
	ClaimHash      string    `json:"claimHash"`
	CircuitVersion uint      `json:"circuitVersion,omitempty"`
	CircuitHash    string    `json:"circuitHash,omitempty"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}

func (e VerificationEvent) Serialize() ([]byte, error) {
	return json.Marshal(e)
}
