// Package verification runs a submitted proof through the ordered checks that
// decide whether it is accepted: circuit layout, nonce, challenge consumption,
// claim hash binding, cryptographic verification and the asserted result.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/field"
	"github.com/zentity/zk-attest/logger"
)

// ProofVerifier checks a proof against its public inputs. It is implemented
// by the proving system.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, circuitType circuitspec.Type, proof []byte, publicInputs []string) (bool, error)
}

// DocumentBinding is the claim value and document hash the claim hash must
// commit to. Both accept decimal or 0x hex.
type DocumentBinding struct {
	ClaimValue        string `json:"claimValue"`
	DocumentHashField string `json:"documentHashField"`
}

type Request struct {
	CircuitType  string
	Proof        []byte
	PublicInputs []string
	UserID       string
	Binding      *DocumentBinding
}

type Result struct {
	CircuitType circuitspec.Type
	Nonce       string
	ClaimHash   string
	Challenge   challenge.Challenge
	Verified    bool
}

type Orchestrator struct {
	store    challenge.Store
	verifier ProofVerifier
	field    *field.Backend
	log      logger.Logger
}

type Option func(*Orchestrator)

func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithFieldBackend(b *field.Backend) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.field = b
		}
	}
}

func NewOrchestrator(store challenge.Store, verifier ProofVerifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		verifier: verifier,
		field:    field.Default(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Verify runs every stage in order and stops at the first failure. Failures
// are *StageError values whose message is the generic "verification failed".
// The challenge is consumed before any cryptographic work, so a proof that
// fails later still burns its nonce.
func (o *Orchestrator) Verify(ctx context.Context, req Request) (*Result, error) {
	res, err := o.verify(ctx, req)
	if err != nil {
		detail := err.Error()
		var se *StageError
		if errors.As(err, &se) {
			detail = se.Detail()
		}
		o.log.Warn("proof verification rejected",
			"circuit", req.CircuitType,
			"stage", StageOf(err),
			"error", detail,
		)
		return nil, err
	}
	o.log.Info("proof verified",
		"circuit", res.CircuitType,
		"nonce", res.Nonce,
	)
	return res, nil
}

func (o *Orchestrator) verify(ctx context.Context, req Request) (*Result, error) {
	ct, err := circuitspec.ParseType(req.CircuitType)
	if err != nil {
		return nil, fail(StageSpec, err)
	}
	spec, ok := circuitspec.Lookup(ct)
	if !ok {
		return nil, fail(StageSpec, fmt.Errorf("%w: %s", circuitspec.ErrUnknownCircuit, ct))
	}
	if err := spec.Check(req.PublicInputs); err != nil {
		return nil, fail(StageSpec, err)
	}

	nonce, err := spec.Nonce(req.PublicInputs)
	if err != nil {
		return nil, fail(StageNonce, err)
	}

	ch, ok, err := o.store.Consume(ctx, nonce, ct, req.UserID)
	if err != nil {
		return nil, fail(StageChallenge, err)
	}
	if !ok {
		return nil, fail(StageChallenge, ErrChallengeRejected)
	}

	claimHash, err := spec.ClaimHash(req.PublicInputs)
	if err != nil {
		return nil, fail(StageClaimHash, err)
	}
	if req.Binding != nil {
		if err := o.checkBinding(spec.ClaimHashScheme, claimHash, req.Binding); err != nil {
			return nil, fail(StageClaimHash, err)
		}
	}

	valid, err := o.verifier.VerifyProof(ctx, ct, req.Proof, req.PublicInputs)
	if err != nil {
		return nil, fail(StageProof, err)
	}
	if !valid {
		return nil, fail(StageProof, ErrProofInvalid)
	}

	result, err := spec.Result(req.PublicInputs)
	if err != nil {
		return nil, fail(StageResult, err)
	}
	if !result {
		return nil, fail(StageResult, ErrResultFalse)
	}

	return &Result{
		CircuitType: ct,
		Nonce:       nonce,
		ClaimHash:   field.EncodeHex(claimHash),
		Challenge:   ch,
		Verified:    true,
	}, nil
}

func (o *Orchestrator) checkBinding(scheme field.Scheme, claimHash *big.Int, b *DocumentBinding) error {
	value, err := field.ParseElement(b.ClaimValue)
	if err != nil {
		return fmt.Errorf("claim value: %w", err)
	}
	doc, err := field.ParseElement(b.DocumentHashField)
	if err != nil {
		return fmt.Errorf("document hash field: %w", err)
	}
	expected, err := o.field.ClaimHash(scheme, value, doc)
	if err != nil {
		return err
	}
	equal, err := o.field.Equal(expected, claimHash.String())
	if err != nil {
		return err
	}
	if !equal {
		return ErrClaimHashMismatch
	}
	return nil
}
