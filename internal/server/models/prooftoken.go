package models

import "time"

// ProofPurpose separates the single-use capabilities a user may hold at once.
type ProofPurpose string

const (
	PurposeVerifyEmail   ProofPurpose = "verify-email"
	PurposeResetPassword ProofPurpose = "reset-password"
)

// ProofToken is a pending proof of email control. At most one exists per
// (UserID, Purpose); deleting it is the only way it ends.
type ProofToken struct {
	ID        string
	UserID    string
	Purpose   ProofPurpose
	Token     string
	CreatedAt time.Time
}
