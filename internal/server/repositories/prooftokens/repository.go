// Package prooftokens declares the storage contract for single-use proof
// tokens (email verification and password reset) and its PostgreSQL
// implementation.
package prooftokens

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Repository stores at most one token per (user, purpose).
type Repository interface {
	// Find returns the active token for userID and purpose, or common.ErrNotFound.
	Find(ctx context.Context, userID string, purpose models.ProofPurpose) (*models.ProofToken, error)

	// Create inserts token unless one already exists for its (user, purpose).
	// It reports whether a row was inserted.
	Create(ctx context.Context, token *models.ProofToken) (bool, error)

	// Delete removes a token by id. A missing token is common.ErrNotFound,
	// so a second consume of the same token fails.
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes every token owned by userID.
	DeleteByUser(ctx context.Context, userID string) error
}
