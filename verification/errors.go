package verification

import "errors"

// Stage names the step of the pipeline that rejected a proof.
type Stage string

const (
	StageSpec      Stage = "spec"
	StageNonce     Stage = "nonce"
	StageChallenge Stage = "challenge"
	StageClaimHash Stage = "claim_hash"
	StageProof     Stage = "proof"
	StageResult    Stage = "result"
)

// ErrVerificationFailed is the only failure callers outside the process see.
var ErrVerificationFailed = errors.New("verification failed")

var (
	ErrChallengeRejected = errors.New("challenge rejected")
	ErrClaimHashMismatch = errors.New("claim hash does not match document binding")
	ErrProofInvalid      = errors.New("proof rejected by verifier")
	ErrResultFalse       = errors.New("circuit result is false")
)

// StageError records which stage failed and why. Its message is always the
// generic ErrVerificationFailed text so that it can be returned to untrusted
// callers; Stage and Cause are for logs.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return ErrVerificationFailed.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrVerificationFailed }

// Cause returns the underlying failure.
func (e *StageError) Cause() error { return e.Err }

// Detail is the log form, e.g. "challenge: challenge rejected".
func (e *StageError) Detail() string {
	if e.Err == nil {
		return string(e.Stage)
	}
	return string(e.Stage) + ": " + e.Err.Error()
}

// StageOf returns the failed stage of err, or "" if err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
