// Package users declares the credential store contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Repository persists user records. Lookups return common.ErrNotFound when
// no row matches; Delete of a missing user is not an error.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)

	// MarkVerified flips the verification flag on.
	MarkVerified(ctx context.Context, id string) error
	// ResetPassword stores a new hash and force-verifies the account.
	ResetPassword(ctx context.Context, id string, passwordHash string) error
	// UpdateProfile applies the non-nil fields and returns the updated row.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error)
	SetProfilePhoto(ctx context.Context, id string, photo models.Image) error

	Delete(ctx context.Context, id string) error
}

// ProfileUpdate lists the fields a user may change on their own profile.
type ProfileUpdate struct {
	Username     *string
	Bio          *string
	PasswordHash *string
}
