package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zentity/zk-attest/attestation"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/events"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/models"
	"github.com/zentity/zk-attest/verification"
)

// UserIDHeader carries the authenticated user id set by the calling service.
const UserIDHeader = "X-User-Id"

// Server handles HTTP requests for challenge, proof and attestation operations
type Server struct {
	registry  *CircuitRegistry
	store     challenge.Store
	verifier  *verification.Orchestrator
	signer    *attestation.Signer
	publisher events.Publisher
	log       logger.Logger
}

// Deps are the collaborators of a Server. Publisher and Log may be nil.
type Deps struct {
	Registry  *CircuitRegistry
	Store     challenge.Store
	Signer    *attestation.Signer
	Publisher events.Publisher
	Log       logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	pub := d.Publisher
	if pub == nil {
		pub = events.Nop()
	}
	return &Server{
		registry:  d.Registry,
		store:     d.Store,
		verifier:  verification.NewOrchestrator(d.Store, d.Registry, verification.WithLogger(log)),
		signer:    d.Signer,
		publisher: pub,
		log:       log,
	}
}

// ==== Request/Response Types ====

// CreateChallengeRequest represents a challenge issuance request
type CreateChallengeRequest struct {
	CircuitType string `json:"circuitType"`
}

// ChallengeResponse is what a client needs to build its proof
type ChallengeResponse struct {
	Nonce       string    `json:"nonce"`
	CircuitType string    `json:"circuitType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ActiveChallengesResponse reports unexpired, unconsumed challenges
type ActiveChallengesResponse struct {
	Count int `json:"count"`
}

// VerifyProofRequest represents a proof verification request
type VerifyProofRequest struct {
	CircuitType   string                        `json:"circuitType"`
	Proof         string                        `json:"proof"` // base64 encoded
	PublicSignals []string                      `json:"publicSignals"`
	Binding       *verification.DocumentBinding `json:"binding,omitempty"`
}

// VerifyProofResponse represents a proof verification response
type VerifyProofResponse struct {
	Verified       bool      `json:"verified"`
	CircuitType    string    `json:"circuitType"`
	Nonce          string    `json:"nonce"`
	ClaimHash      string    `json:"claimHash"`
	CircuitVersion uint      `json:"circuitVersion,omitempty"`
	CircuitHash    string    `json:"circuitHash,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AttestationResponse carries a signed attestation token
type AttestationResponse struct {
	Token string `json:"token"`
}

// VerifyAttestationRequest represents an attestation verification request
type VerifyAttestationRequest struct {
	Token          string `json:"token"`
	ExpectedType   string `json:"expectedType,omitempty"`
	ExpectedUserID string `json:"expectedUserId,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitInfoResponse represents circuit information
type CircuitInfoResponse struct {
	models.CircuitArtifact
	Layout circuitspec.Spec `json:"layout"`
}

// CircuitListResponse represents a list of circuits
type CircuitListResponse struct {
	Circuits []CircuitInfoResponse `json:"circuits"`
	Count    int                   `json:"count"`
}

// ==== Handlers ====

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleListCircuits lists all circuit types with their layout and artifact
func (s *Server) HandleListCircuits(w http.ResponseWriter, r *http.Request) {
	circuits := make([]CircuitInfoResponse, 0, len(CircuitList))
	for _, a := range s.registry.Artifacts() {
		spec, _ := circuitspec.Lookup(circuitspec.Type(a.CircuitType))
		circuits = append(circuits, CircuitInfoResponse{CircuitArtifact: a, Layout: spec})
	}

	respondJSON(w, http.StatusOK, CircuitListResponse{
		Circuits: circuits,
		Count:    len(circuits),
	})
}

// HandleGetCircuit gets information about a specific circuit
func (s *Server) HandleGetCircuit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "circuit")

	a, ok := s.registry.Artifact(name)
	if !ok {
		respondError(w, http.StatusNotFound, "circuit_not_found",
			fmt.Sprintf("circuit '%s' not found", name))
		return
	}
	spec, _ := circuitspec.Lookup(circuitspec.Type(name))

	respondJSON(w, http.StatusOK, CircuitInfoResponse{CircuitArtifact: a, Layout: spec})
}

// HandleCreateChallenge issues a single-use nonce for a circuit type
func (s *Server) HandleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req CreateChallengeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ct, err := circuitspec.ParseType(req.CircuitType)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_circuit_type",
			fmt.Sprintf("unknown circuit type '%s'", req.CircuitType))
		return
	}

	c, err := s.store.Create(r.Context(), ct, r.Header.Get(UserIDHeader))
	if err != nil {
		s.log.Error("Failed to create challenge", "circuit", ct, "error", err)
		respondError(w, http.StatusInternalServerError, "challenge_failed",
			"failed to create challenge")
		return
	}

	respondJSON(w, http.StatusCreated, ChallengeResponse{
		Nonce:       c.Nonce,
		CircuitType: string(c.CircuitType),
		ExpiresAt:   c.ExpiresAt,
	})
}

// HandleActiveChallenges reports the number of outstanding challenges
func (s *Server) HandleActiveChallenges(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ActiveCount(r.Context())
	if err != nil {
		s.log.Error("Failed to count challenges", "error", err)
		respondError(w, http.StatusInternalServerError, "challenge_count_failed",
			"failed to count challenges")
		return
	}
	respondJSON(w, http.StatusOK, ActiveChallengesResponse{Count: n})
}

// HandleVerifyProof runs a proof through the verification pipeline. Every
// rejection gets the same generic answer; the failing stage is only logged.
func (s *Server) HandleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var req VerifyProofRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.CircuitType == "" || req.Proof == "" || len(req.PublicSignals) == 0 {
		respondError(w, http.StatusBadRequest, "missing_input",
			"circuitType, proof and publicSignals are required")
		return
	}

	proofBytes, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_proof_encoding",
			"proof must be base64 encoded")
		return
	}

	userID := r.Header.Get(UserIDHeader)
	res, err := s.verifier.Verify(r.Context(), verification.Request{
		CircuitType:  req.CircuitType,
		Proof:        proofBytes,
		PublicInputs: req.PublicSignals,
		UserID:       userID,
		Binding:      req.Binding,
	})
	if errors.Is(err, verification.ErrVerificationFailed) {
		respondError(w, http.StatusUnprocessableEntity, "verification_failed",
			verification.ErrVerificationFailed.Error())
		return
	}
	if err != nil {
		s.log.Error("Proof verification error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error",
			"internal error")
		return
	}

	artifact, _ := s.registry.Artifact(string(res.CircuitType))
	now := time.Now().UTC()

	event := models.VerificationEvent{
		ID:             uuid.NewString(),
		CircuitType:    string(res.CircuitType),
		UserID:         userID,
		Nonce:          res.Nonce,
		ClaimHash:      res.ClaimHash,
		CircuitVersion: artifact.Version,
		CircuitHash:    artifact.CircuitHash,
		VerifiedAt:     now,
	}
	if err := s.publisher.Publish(r.Context(), event); err != nil {
		s.log.Warn("Failed to publish verification event", "event_id", event.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, VerifyProofResponse{
		Verified:       res.Verified,
		CircuitType:    string(res.CircuitType),
		Nonce:          res.Nonce,
		ClaimHash:      res.ClaimHash,
		CircuitVersion: artifact.Version,
		CircuitHash:    artifact.CircuitHash,
		Timestamp:      now,
	})
}

// HandleIssueAttestation signs an attestation payload
func (s *Server) HandleIssueAttestation(w http.ResponseWriter, r *http.Request) {
	var p attestation.Payload
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Type == "" || p.UserID == "" || p.Data == nil {
		respondError(w, http.StatusBadRequest, "missing_input",
			"type, userId and data are required")
		return
	}
	if p.IssuedAt == "" {
		p.IssuedAt = time.Now().UTC().Format(time.RFC3339)
	}

	token, err := s.signer.Sign(p)
	if err != nil {
		s.log.Warn("Failed to sign attestation", "type", p.Type, "error", err)
		respondError(w, http.StatusBadRequest, "invalid_payload",
			"attestation payload could not be signed")
		return
	}
	respondJSON(w, http.StatusOK, AttestationResponse{Token: token})
}

// HandleVerifyAttestation verifies a token and returns its payload. Once the
// signature holds, type, user and missing field failures are reported as
// such; anything earlier is a generic rejection.
func (s *Server) HandleVerifyAttestation(w http.ResponseWriter, r *http.Request) {
	var req VerifyAttestationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "missing_input", "token is required")
		return
	}

	p, err := s.signer.Verify(req.Token, attestation.ClaimType(req.ExpectedType), req.ExpectedUserID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, p)
	case errors.Is(err, attestation.ErrClaimTypeMismatch),
		errors.Is(err, attestation.ErrClaimUserMismatch),
		errors.Is(err, attestation.ErrMissingFields):
		respondError(w, http.StatusUnauthorized, "claim_rejected", err.Error())
	default:
		s.log.Warn("Attestation rejected", "error", err)
		respondError(w, http.StatusUnauthorized, "invalid_attestation", "invalid attestation")
	}
}

// ==== Helper Functions ====

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json",
			fmt.Sprintf("failed to parse request: %v", err))
		return false
	}
	return true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
