package ct_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ct "github.com/zentity/zk-attest/circuits/temporal"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/common"
	"github.com/zentity/zk-attest/field"
)

const (
	today      = 20500
	eighteenYr = 6575
	docHash    = 424242
)

func claimHash(t *testing.T, value int64) *big.Int {
	t.Helper()
	h, err := field.ComputeClaimHash(big.NewInt(value), big.NewInt(docHash))
	require.NoError(t, err)
	v, err := field.ParseElement(h)
	require.NoError(t, err)
	return v
}

func TestAgeVerificationSolves(t *testing.T) {
	tests := []struct {
		name      string
		birthDays int64
		hashed    int64
		result    int
		ok        bool
	}{
		{"old enough", today - eighteenYr - 1, today - eighteenYr - 1, 1, true},
		{"exactly of age", today - eighteenYr, today - eighteenYr, 1, true},
		{"too young", today - eighteenYr + 1, today - eighteenYr + 1, 0, true},
		{"lying about result", today - eighteenYr + 1, today - eighteenYr + 1, 1, false},
		{"hiding a true result", today - 9000, today - 9000, 0, false},
		{"born in the future", today + 1, today + 1, 0, false},
		{"claim hash of another birth date", today - 9000, today - 9001, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment := &ct.AgeVerification{
				CurrentDays:       today,
				MinAgeDays:        eighteenYr,
				Nonce:             "0x0102030405060708090a0b0c0d0e0f10",
				ClaimHash:         claimHash(t, tt.hashed),
				IsOldEnough:       tt.result,
				BirthDays:         tt.birthDays,
				DocumentHashField: docHash,
			}
			err := test.IsSolved(&ct.AgeVerification{}, assignment, ecc.BN254.ScalarField())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAgeVerificationClaimHashCoversDocument(t *testing.T) {
	assignment := &ct.AgeVerification{
		CurrentDays:       today,
		MinAgeDays:        eighteenYr,
		Nonce:             1,
		ClaimHash:         claimHash(t, today-9000),
		IsOldEnough:       1,
		BirthDays:         today - 9000,
		DocumentHashField: docHash + 1,
	}
	assert.Error(t, test.IsSolved(&ct.AgeVerification{}, assignment, ecc.BN254.ScalarField()))
}

func TestAgeVerificationLayout(t *testing.T) {
	ccs, pk, _, err := common.Setup(&ct.AgeVerification{})
	require.NoError(t, err)

	nonce := "0102030405060708090a0b0c0d0e0f10"
	embedded, err := circuitspec.NonceToPublicInput(nonce)
	require.NoError(t, err)

	hash := claimHash(t, today-7000)
	_, inputs, err := common.Prove(&ct.AgeVerification{
		CurrentDays:       today,
		MinAgeDays:        eighteenYr,
		Nonce:             embedded,
		ClaimHash:         hash,
		IsOldEnough:       1,
		BirthDays:         today - 7000,
		DocumentHashField: docHash,
	}, ccs, pk)
	require.NoError(t, err)

	spec, ok := circuitspec.Lookup(circuitspec.AgeVerification)
	require.True(t, ok)
	require.Len(t, inputs, spec.MinPublicInputs)

	got, err := spec.Extract(inputs)
	require.NoError(t, err)
	assert.Equal(t, nonce, got.Nonce)
	assert.Equal(t, hash.String(), got.ClaimHash.String())
	assert.True(t, got.Result)
	assert.Equal(t, "20500", inputs[0])
}
