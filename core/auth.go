package core

import "time"

// Stage is a step of the sign-in handshake
type Stage string

const (
	StageChallengeIssued  Stage = "challenge_issued"
	StageProofSubmitted   Stage = "proof_submitted"
	StageOwnershipChecked Stage = "ownership_checked"
	StageTokenIssued      Stage = "token_issued"
)

// Session represents an authenticated holder of one asset
type Session struct {
	ID        string    // Unique token identifier (jti)
	Owner     string    // Base58 wallet address of the holder
	AssetID   string    // Asset the session is scoped to
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session expires
}

// RejectedError carries the stage at which a handshake was rejected
type RejectedError struct {
	Stage Stage
	Err   error
}

func (e *RejectedError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Reject wraps err as a rejection at stage
func Reject(stage Stage, err error) error {
	return &RejectedError{Stage: stage, Err: err}
}
