package api

import (
	cfm "github.com/zentity/zk-attest/circuits/facematch"
	ct "github.com/zentity/zk-attest/circuits/temporal"
	"github.com/zentity/zk-attest/circuitspec"
)

// CircuitList maps every circuit type to the circuit compiled for it. A nil
// Circuit means the proving system lives outside this service; its verifying
// key can still be dropped into the circuits directory.
var CircuitList = map[circuitspec.Type]CircuitInfo{
	circuitspec.AgeVerification: {
		Circuit:     &ct.AgeVerification{},
		Name:        "age-verification",
		Version:     1,
		Description: "Proves the holder is at least min_age_days old on current_days",
	},
	circuitspec.DocValidity: {
		Circuit:     &ct.DocValidity{},
		Name:        "doc-validity",
		Version:     1,
		Description: "Proves the identity document has not expired on current_date",
	},
	circuitspec.NationalityMembership: {
		Name:        "nationality-membership",
		Version:     1,
		Description: "Proves the nationality is a leaf of the published merkle root",
	},
	circuitspec.FaceMatch: {
		Circuit:     &cfm.FaceMatch{},
		Name:        "face-match",
		Version:     1,
		Description: "Proves the face similarity score reaches the threshold",
	},
}
