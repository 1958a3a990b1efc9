package ct

import (
	"github.com/consensys/gnark/frontend"
	"github.com/zentity/zk-attest/common"
)

// AgeVerification proves that the holder was born at least MinAgeDays before
// CurrentDays without revealing the birth date. Dates are day counts. The
// claim hash commits to the birth date and the document it came from.
//
// Public inputs, in order: current_days, min_age_days, nonce, claim_hash,
// is_old_enough.
type AgeVerification struct {
	CurrentDays frontend.Variable `gnark:",public"`
	MinAgeDays  frontend.Variable `gnark:",public"`
	Nonce       frontend.Variable `gnark:",public"`
	ClaimHash   frontend.Variable `gnark:",public"`
	IsOldEnough frontend.Variable `gnark:",public"`

	// Secret inputs
	BirthDays         frontend.Variable `gnark:",secret"`
	DocumentHashField frontend.Variable `gnark:",secret"`
}

func (c *AgeVerification) Define(api frontend.API) error {
	common.Bind(api, c.Nonce)
	if err := common.AssertClaimHash(api, c.ClaimHash, c.BirthDays, c.DocumentHashField); err != nil {
		return err
	}

	// a birth date in the future is never valid
	api.AssertIsLessOrEqual(c.BirthDays, c.CurrentDays)

	age := api.Sub(c.CurrentDays, c.BirthDays)
	api.AssertIsEqual(c.IsOldEnough, common.IsGreaterOrEqual(api, age, c.MinAgeDays))
	return nil
}
