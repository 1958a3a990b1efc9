// Package cfm holds the face match circuit.
package cfm

import (
	"github.com/consensys/gnark/frontend"
	"github.com/zentity/zk-attest/common"
)

// MaxScore is a similarity of 1.0 in fixed point.
const MaxScore = 10000

// FaceMatch proves that a hidden similarity score reaches Threshold. Both are
// fixed point with four decimals. The claim hash commits to the score and
// the document photo it was computed against.
//
// Public inputs, in order: threshold, nonce, claim_hash, is_match.
type FaceMatch struct {
	Threshold frontend.Variable `gnark:",public"`
	Nonce     frontend.Variable `gnark:",public"`
	ClaimHash frontend.Variable `gnark:",public"`
	IsMatch   frontend.Variable `gnark:",public"`

	Score             frontend.Variable `gnark:",secret"`
	DocumentHashField frontend.Variable `gnark:",secret"`
}

func (c *FaceMatch) Define(api frontend.API) error {
	common.Bind(api, c.Nonce)
	if err := common.AssertClaimHash(api, c.ClaimHash, c.Score, c.DocumentHashField); err != nil {
		return err
	}

	api.AssertIsLessOrEqual(c.Score, MaxScore)
	api.AssertIsLessOrEqual(c.Threshold, MaxScore)

	api.AssertIsEqual(c.IsMatch, common.IsGreaterOrEqual(api, c.Score, c.Threshold))
	return nil
}
