package attestation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ClaimType identifies the kind of verification outcome a claim carries.
type ClaimType string

const (
	ClaimLivenessScore  ClaimType = "liveness_score"
	ClaimFaceMatchScore ClaimType = "face_match_score"
)

// ScoreScale maps a 0.0-1.0 score onto 0-10000, four decimal places.
const ScoreScale = 10000

var ErrInvalidScore = errors.New("score must be between 0.0 and 1.0")

// Payload is the typed body of an attestation token.
type Payload struct {
	Type              ClaimType
	UserID            string
	IssuedAt          string
	Version           int
	PolicyVersion     string
	DocumentHash      string
	DocumentHashField string
	Data              ClaimData
}

// ClaimData is implemented by LivenessClaimData and FaceMatchClaimData only.
type ClaimData interface {
	claimType() ClaimType
}

type LivenessClaimData struct {
	AntispoofScore      float64 `json:"antispoofScore"`
	LiveScore           float64 `json:"liveScore"`
	Passed              bool    `json:"passed"`
	AntispoofScoreFixed int     `json:"antispoofScoreFixed"`
	LiveScoreFixed      int     `json:"liveScoreFixed"`
}

func (LivenessClaimData) claimType() ClaimType { return ClaimLivenessScore }

type FaceMatchClaimData struct {
	Confidence      float64 `json:"confidence"`
	ConfidenceFixed int     `json:"confidenceFixed"`
	ThresholdFixed  int     `json:"thresholdFixed"`
	Passed          bool    `json:"passed"`
	ClaimHash       string  `json:"claimHash,omitempty"`
}

func (FaceMatchClaimData) claimType() ClaimType { return ClaimFaceMatchScore }

// ScoreToFixed converts a score in [0, 1] to its fixed-point mirror.
func ScoreToFixed(score float64) (int, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return int(math.Round(score * ScoreScale)), nil
}

// NewLivenessClaim fills the fixed-point mirrors for a liveness decision.
func NewLivenessClaim(antispoofScore, liveScore float64, passed bool) (LivenessClaimData, error) {
	antispoof, err := ScoreToFixed(antispoofScore)
	if err != nil {
		return LivenessClaimData{}, fmt.Errorf("antispoof: %w", err)
	}
	live, err := ScoreToFixed(liveScore)
	if err != nil {
		return LivenessClaimData{}, fmt.Errorf("live: %w", err)
	}
	return LivenessClaimData{
		AntispoofScore:      antispoofScore,
		LiveScore:           liveScore,
		Passed:              passed,
		AntispoofScoreFixed: antispoof,
		LiveScoreFixed:      live,
	}, nil
}

// NewFaceMatchClaim compares confidence against threshold in fixed point, the
// same domain the face match circuit works in.
func NewFaceMatchClaim(confidence, threshold float64, claimHash string) (FaceMatchClaimData, error) {
	conf, err := ScoreToFixed(confidence)
	if err != nil {
		return FaceMatchClaimData{}, fmt.Errorf("confidence: %w", err)
	}
	thr, err := ScoreToFixed(threshold)
	if err != nil {
		return FaceMatchClaimData{}, fmt.Errorf("threshold: %w", err)
	}
	return FaceMatchClaimData{
		Confidence:      confidence,
		ConfidenceFixed: conf,
		ThresholdFixed:  thr,
		Passed:          conf >= thr,
		ClaimHash:       claimHash,
	}, nil
}

// wirePayload is the JSON shape of the private claims.
type wirePayload struct {
	Type              ClaimType       `json:"type,omitempty"`
	UserID            string          `json:"userId,omitempty"`
	IssuedAt          string          `json:"issuedAt,omitempty"`
	Version           int             `json:"version"`
	PolicyVersion     string          `json:"policyVersion,omitempty"`
	DocumentHash      string          `json:"documentHash,omitempty"`
	DocumentHashField string          `json:"documentHashField,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
}

func (p Payload) wire() (wirePayload, error) {
	w := wirePayload{
		Type:              p.Type,
		UserID:            p.UserID,
		IssuedAt:          p.IssuedAt,
		Version:           p.Version,
		PolicyVersion:     p.PolicyVersion,
		DocumentHash:      p.DocumentHash,
		DocumentHashField: p.DocumentHashField,
	}
	if p.Data == nil {
		return w, nil
	}
	if p.Type != "" && p.Data.claimType() != p.Type {
		return wirePayload{}, fmt.Errorf("payload type %q carries %q data", p.Type, p.Data.claimType())
	}
	raw, err := json.Marshal(p.Data)
	if err != nil {
		return wirePayload{}, fmt.Errorf("marshal claim data: %w", err)
	}
	w.Data = raw
	return w, nil
}

func (w wirePayload) hasData() bool {
	return len(w.Data) > 0 && string(w.Data) != "null"
}

func (w wirePayload) payload() (*Payload, error) {
	p := &Payload{
		Type:              w.Type,
		UserID:            w.UserID,
		IssuedAt:          w.IssuedAt,
		Version:           w.Version,
		PolicyVersion:     w.PolicyVersion,
		DocumentHash:      w.DocumentHash,
		DocumentHashField: w.DocumentHashField,
	}
	if !w.hasData() {
		return p, nil
	}
	switch w.Type {
	case ClaimLivenessScore:
		var d LivenessClaimData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return nil, fmt.Errorf("decode liveness data: %w", err)
		}
		p.Data = d
	case ClaimFaceMatchScore:
		var d FaceMatchClaimData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return nil, fmt.Errorf("decode face match data: %w", err)
		}
		p.Data = d
	default:
		return nil, fmt.Errorf("unknown claim type %q", w.Type)
	}
	return p, nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	w, err := p.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var w wirePayload
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out, err := w.payload()
	if err != nil {
		return err
	}
	*p = *out
	return nil
}
