// Package comments declares comment persistence and its PostgreSQL
// implementation.
package comments

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Repository persists comments. Bulk deletes are idempotent.
type Repository interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	List(ctx context.Context) ([]*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	CountByPost(ctx context.Context, postID string) (int64, error)
	UpdateText(ctx context.Context, id, text string) (*models.Comment, error)

	Delete(ctx context.Context, id string) error
	DeleteByPost(ctx context.Context, postID string) error
	// DeleteByUser removes comments written by userID on any post.
	DeleteByUser(ctx context.Context, userID string) error
	// DeleteOnPostsOf removes every comment on posts authored by userID.
	DeleteOnPostsOf(ctx context.Context, userID string) error
}
