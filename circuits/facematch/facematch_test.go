package cfm_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfm "github.com/zentity/zk-attest/circuits/facematch"
	"github.com/zentity/zk-attest/field"
)

const photoHash = 31337

func scoreHash(t *testing.T, score int64) *big.Int {
	t.Helper()
	h, err := field.ComputeClaimHash(big.NewInt(score), big.NewInt(photoHash))
	require.NoError(t, err)
	v, err := field.ParseElement(h)
	require.NoError(t, err)
	return v
}

func TestFaceMatchSolves(t *testing.T) {
	tests := []struct {
		name   string
		score  int64
		hashed int64
		match  int
		ok     bool
	}{
		{"above threshold", 7200, 7200, 1, true},
		{"at threshold", 6000, 6000, 1, true},
		{"below threshold", 5999, 5999, 0, true},
		{"claims match below threshold", 5999, 5999, 1, false},
		{"score out of range", cfm.MaxScore + 1, cfm.MaxScore + 1, 1, false},
		{"claim hash of a higher score", 5999, 9000, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment := &cfm.FaceMatch{
				Threshold:         6000,
				Nonce:             1,
				ClaimHash:         scoreHash(t, tt.hashed),
				IsMatch:           tt.match,
				Score:             tt.score,
				DocumentHashField: photoHash,
			}
			err := test.IsSolved(&cfm.FaceMatch{}, assignment, ecc.BN254.ScalarField())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
