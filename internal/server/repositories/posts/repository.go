// Package posts declares post persistence, including the like relation, and
// its PostgreSQL implementation.
package posts

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Filter narrows List. A zero Limit returns every matching post.
type Filter struct {
	Category string
	Limit    int
	Offset   int
}

// Repository persists posts. Deletes are idempotent: removing rows that are
// already gone is not an error.
type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns posts newest first.
	List(ctx context.Context, f Filter) ([]*models.Post, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)

	Update(ctx context.Context, id string, upd Update) (*models.Post, error)
	SetImage(ctx context.Context, id string, image models.Image) error

	// RemoveLike reports whether a like by userID existed and was removed.
	RemoveLike(ctx context.Context, postID, userID string) (bool, error)
	AddLike(ctx context.Context, postID, userID string) error
	DeleteLikesByPost(ctx context.Context, postID string) error
	DeleteLikesByUser(ctx context.Context, userID string) error
	// DeleteLikesOnPostsOf removes every like on posts authored by userID.
	DeleteLikesOnPostsOf(ctx context.Context, userID string) error

	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// Update lists the editable post fields. Nil fields are left unchanged.
type Update struct {
	Title       *string
	Description *string
	Category    *string
}
