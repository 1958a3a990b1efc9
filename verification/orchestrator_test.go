package verification_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/field"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/verification"
)

type stubVerifier struct {
	valid bool
	err   error
	calls int
}

func (v *stubVerifier) VerifyProof(_ context.Context, _ circuitspec.Type, _ []byte, _ []string) (bool, error) {
	v.calls++
	return v.valid, v.err
}

type fixture struct {
	store    *challenge.MemoryStore
	verifier *stubVerifier
	orch     *verification.Orchestrator
	logs     *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		store:    challenge.NewMemoryStore(),
		verifier: &stubVerifier{valid: true},
		logs:     &bytes.Buffer{},
	}
	f.orch = verification.NewOrchestrator(f.store, f.verifier,
		verification.WithLogger(logger.New(f.logs, "debug", "json")))
	return f
}

const (
	claimValue = "20000101"
	docHash    = "0x1b2f0c8e4d"
)

func claimHash(t *testing.T) string {
	return claimHashWith(t, field.SchemeMiMC)
}

func claimHashWith(t *testing.T, scheme field.Scheme) string {
	t.Helper()
	v, err := field.ParseElement(claimValue)
	require.NoError(t, err)
	d, err := field.ParseElement(docHash)
	require.NoError(t, err)
	h, err := field.Default().ClaimHash(scheme, v, d)
	require.NoError(t, err)
	return h
}

// ageInputs lays out [current_days, min_age_days, nonce, claim_hash, is_old_enough].
func ageInputs(t *testing.T, nonce, hash, result string) []string {
	t.Helper()
	n, err := circuitspec.NonceToPublicInput(nonce)
	require.NoError(t, err)
	return []string{"20500", "6570", n, hash, result}
}

func binding() *verification.DocumentBinding {
	return &verification.DocumentBinding{ClaimValue: claimValue, DocumentHashField: docHash}
}

func (f *fixture) challenge(t *testing.T, ct circuitspec.Type, userID string) challenge.Challenge {
	t.Helper()
	c, err := f.store.Create(context.Background(), ct, userID)
	require.NoError(t, err)
	return c
}

func (f *fixture) active(t *testing.T) int {
	t.Helper()
	n, err := f.store.ActiveCount(context.Background())
	require.NoError(t, err)
	return n
}

func assertStage(t *testing.T, err error, stage verification.Stage) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, verification.ErrVerificationFailed)
	assert.EqualError(t, err, "verification failed")
	assert.Equal(t, stage, verification.StageOf(err))
}

func TestVerifyThenReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.challenge(t, circuitspec.AgeVerification, "user-1")

	req := verification.Request{
		CircuitType:  "age_verification",
		Proof:        []byte("proof"),
		PublicInputs: ageInputs(t, c.Nonce, claimHash(t), "1"),
		UserID:       "user-1",
		Binding:      binding(),
	}

	res, err := f.orch.Verify(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, circuitspec.AgeVerification, res.CircuitType)
	assert.Equal(t, c.Nonce, res.Nonce)
	assert.Equal(t, claimHash(t), res.ClaimHash)
	assert.Equal(t, c.Nonce, res.Challenge.Nonce)
	assert.Equal(t, 1, f.verifier.calls)

	_, err = f.orch.Verify(ctx, req)
	assertStage(t, err, verification.StageChallenge)
	assert.ErrorIs(t, err, verification.ErrChallengeRejected)
	assert.Equal(t, 1, f.verifier.calls, "replay never reaches the verifier")
}

func TestSpecStage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.challenge(t, circuitspec.AgeVerification, "")

	_, err := f.orch.Verify(ctx, verification.Request{
		CircuitType:  "liveness",
		PublicInputs: ageInputs(t, c.Nonce, "0", "1"),
	})
	assertStage(t, err, verification.StageSpec)
	assert.ErrorIs(t, err, circuitspec.ErrUnknownCircuit)

	_, err = f.orch.Verify(ctx, verification.Request{
		CircuitType:  "age_verification",
		PublicInputs: ageInputs(t, c.Nonce, "0", "1")[:4],
	})
	assertStage(t, err, verification.StageSpec)
	assert.ErrorIs(t, err, circuitspec.ErrNotEnoughInputs)

	assert.Equal(t, 1, f.active(t), "challenge untouched")
	assert.Zero(t, f.verifier.calls)
}

func TestNonceStage(t *testing.T) {
	f := newFixture()
	f.challenge(t, circuitspec.DocValidity, "")

	_, err := f.orch.Verify(context.Background(), verification.Request{
		CircuitType:  "doc_validity",
		PublicInputs: []string{"20260301", "0xnothex", "0", "1"},
	})
	assertStage(t, err, verification.StageNonce)
	assert.Equal(t, 1, f.active(t))
}

func TestChallengeStageLeavesMismatchedChallenge(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.challenge(t, circuitspec.AgeVerification, "user-1")
	inputs := ageInputs(t, c.Nonce, "0", "1")

	_, err := f.orch.Verify(ctx, verification.Request{CircuitType: "age_verification", PublicInputs: inputs, UserID: "user-2"})
	assertStage(t, err, verification.StageChallenge)

	_, err = f.orch.Verify(ctx, verification.Request{CircuitType: "doc_validity", PublicInputs: inputs[1:], UserID: "user-1"})
	assertStage(t, err, verification.StageChallenge)

	_, err = f.orch.Verify(ctx, verification.Request{CircuitType: "age_verification", PublicInputs: inputs, UserID: "user-1"})
	require.NoError(t, err)
}

func TestClaimHashStage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.challenge(t, circuitspec.AgeVerification, "")

	other := verification.DocumentBinding{ClaimValue: "20000102", DocumentHashField: docHash}
	_, err := f.orch.Verify(ctx, verification.Request{
		CircuitType:  "age_verification",
		PublicInputs: ageInputs(t, c.Nonce, claimHash(t), "1"),
		Binding:      &other,
	})
	assertStage(t, err, verification.StageClaimHash)
	assert.ErrorIs(t, err, verification.ErrClaimHashMismatch)
	assert.Zero(t, f.verifier.calls)
	assert.Zero(t, f.active(t), "the nonce is burned once consumed")
}

func TestClaimHashAcceptsDecimalEncoding(t *testing.T) {
	f := newFixture()
	c := f.challenge(t, circuitspec.AgeVerification, "")

	h, ok := new(big.Int).SetString(claimHash(t)[2:], 16)
	require.True(t, ok)

	_, err := f.orch.Verify(context.Background(), verification.Request{
		CircuitType:  "age_verification",
		PublicInputs: ageInputs(t, c.Nonce, h.String(), "1"),
		Binding:      binding(),
	})
	require.NoError(t, err)
}

func TestProofStage(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid", func(t *testing.T) {
		f := newFixture()
		f.verifier.valid = false
		c := f.challenge(t, circuitspec.AgeVerification, "")

		_, err := f.orch.Verify(ctx, verification.Request{
			CircuitType:  "age_verification",
			PublicInputs: ageInputs(t, c.Nonce, "0", "1"),
		})
		assertStage(t, err, verification.StageProof)
		assert.ErrorIs(t, err, verification.ErrProofInvalid)
	})

	t.Run("verifier error", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("no verifying key")
		f.verifier.err = boom
		c := f.challenge(t, circuitspec.AgeVerification, "")

		_, err := f.orch.Verify(ctx, verification.Request{
			CircuitType:  "age_verification",
			PublicInputs: ageInputs(t, c.Nonce, "0", "1"),
		})
		assertStage(t, err, verification.StageProof)
		assert.ErrorIs(t, err, boom)
		assert.NotContains(t, err.Error(), "verifying key")
	})
}

func TestResultStage(t *testing.T) {
	ctx := context.Background()
	for _, result := range []string{"0", "2"} {
		t.Run(result, func(t *testing.T) {
			f := newFixture()
			c := f.challenge(t, circuitspec.AgeVerification, "")

			_, err := f.orch.Verify(ctx, verification.Request{
				CircuitType:  "age_verification",
				PublicInputs: ageInputs(t, c.Nonce, "0", result),
			})
			assertStage(t, err, verification.StageResult)
			assert.Equal(t, 1, f.verifier.calls, "both validity and result are required")
		})
	}
}

func TestLayoutsPerCircuit(t *testing.T) {
	ctx := context.Background()
	for _, ct := range []circuitspec.Type{circuitspec.DocValidity, circuitspec.NationalityMembership, circuitspec.FaceMatch} {
		t.Run(string(ct), func(t *testing.T) {
			f := newFixture()
			c := f.challenge(t, ct, "user-9")
			n, err := circuitspec.NonceToPublicInput(c.Nonce)
			require.NoError(t, err)
			spec, _ := circuitspec.Lookup(ct)

			res, err := f.orch.Verify(ctx, verification.Request{
				CircuitType:  string(ct),
				PublicInputs: []string{"123", n, claimHashWith(t, spec.ClaimHashScheme), "1"},
				UserID:       "user-9",
				Binding:      binding(),
			})
			require.NoError(t, err)
			assert.Equal(t, ct, res.CircuitType)
		})
	}
}

func TestClaimHashFollowsCircuitScheme(t *testing.T) {
	f := newFixture()
	c := f.challenge(t, circuitspec.NationalityMembership, "user-9")
	n, err := circuitspec.NonceToPublicInput(c.Nonce)
	require.NoError(t, err)

	_, err = f.orch.Verify(context.Background(), verification.Request{
		CircuitType:  string(circuitspec.NationalityMembership),
		PublicInputs: []string{"123", n, claimHashWith(t, field.SchemeMiMC), "1"},
		UserID:       "user-9",
		Binding:      binding(),
	})
	assertStage(t, err, verification.StageClaimHash)
	assert.ErrorIs(t, err, verification.ErrClaimHashMismatch)
}

func TestRejectionIsLoggedWithStage(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Verify(context.Background(), verification.Request{
		CircuitType:  "face_match",
		PublicInputs: []string{"6000", "0x01", "0", "1"},
	})
	assertStage(t, err, verification.StageChallenge)

	out := f.logs.String()
	assert.Contains(t, out, `"stage":"challenge"`)
	assert.Contains(t, out, `"circuit":"face_match"`)
	assert.Contains(t, out, "challenge rejected")
}
