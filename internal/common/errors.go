// Package common defines shared constants, sentinel errors and small helpers
// used across the server layers. Callers should use errors.Is to match the
// sentinel values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Input errors.
	ErrValidation        = errors.New("validation error")
	ErrDuplicateIdentity = errors.New("user already exist")

	// Identity proof errors. ErrInvalidCredentials is returned both for an
	// unknown email and for a wrong password.
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrVerificationRequired = errors.New("we sent you an email, please verify your email address")
	ErrInvalidLink          = errors.New("invalid link")

	// Access errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access denied, forbidden")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Collaborator errors (image store, email transport).
	ErrExternalStore = errors.New("external store failure")

	ErrInternal = errors.New("internal error")
)

// ValidationError describes a malformed input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ExternalError wraps a failure of a remote collaborator with the name of the
// operation that failed. It matches ErrExternalStore.
func ExternalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalStore, err)
}
