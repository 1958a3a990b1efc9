package ct

import (
	"github.com/consensys/gnark/frontend"
	"github.com/zentity/zk-attest/common"
)

// DocValidity proves that a document has not expired on CurrentDate. Dates
// are YYYYMMDD integers, which order the same way as the calendar. The claim
// hash commits to the expiry date.
//
// Public inputs, in order: current_date, nonce, claim_hash, is_valid.
type DocValidity struct {
	CurrentDate frontend.Variable `gnark:",public"`
	Nonce       frontend.Variable `gnark:",public"`
	ClaimHash   frontend.Variable `gnark:",public"`
	IsValid     frontend.Variable `gnark:",public"`

	ExpiryDate        frontend.Variable `gnark:",secret"`
	DocumentHashField frontend.Variable `gnark:",secret"`
}

func (c *DocValidity) Define(api frontend.API) error {
	common.Bind(api, c.Nonce)
	if err := common.AssertClaimHash(api, c.ClaimHash, c.ExpiryDate, c.DocumentHashField); err != nil {
		return err
	}

	api.AssertIsEqual(c.IsValid, common.IsGreaterOrEqual(api, c.ExpiryDate, c.CurrentDate))
	return nil
}
