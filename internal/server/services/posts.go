package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/imagestore"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
)

// PostsPerPage is the page size of the paginated post list.
const PostsPerPage = 3

type CreatePostInput struct {
	Title       string `json:"title" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"required,min=10"`
	Category    string `json:"category" validate:"required"`
}

type UpdatePostInput struct {
	Title       *string `json:"title" validate:"omitnil,min=2,max=200"`
	Description *string `json:"description" validate:"omitnil,min=10"`
	Category    *string `json:"category" validate:"omitnil,min=1"`
}

// ListPostsQuery selects either a page (PageNumber >= 1), a category, or
// everything.
type ListPostsQuery struct {
	PageNumber int
	Category   string
}

type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      imagestore.Store
	cascade     *CascadeCoordinator
	logger      logging.Logger
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, images imagestore.Store,
	cascade *CascadeCoordinator, logger logging.Logger) *PostService {
	return &PostService{
		db:          db,
		repomanager: m,
		images:      images,
		cascade:     cascade,
		logger:      logger.With("module", "posts"),
	}
}

// Create uploads the image and stores the post. A failed upload is fatal;
// if the row cannot be stored afterwards the uploaded image is removed.
func (s *PostService) Create(ctx context.Context, actor auth.Identity, in CreatePostInput, image io.Reader, contentType string) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if image == nil {
		return nil, common.NewValidationError("image", "no image provided")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	img, err := s.images.Upload(ctx, image, contentType)
	if err != nil {
		return nil, err
	}

	post, err := s.repomanager.Posts(s.db).Create(ctx, &models.Post{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		UserID:      actor.UserID,
		Image:       img,
	})
	if err != nil {
		s.discardImage(ctx, img.PublicID)
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, q ListPostsQuery) ([]*models.Post, error) {
	f := posts.Filter{Category: strings.TrimSpace(q.Category)}
	if q.PageNumber > 0 {
		f = posts.Filter{Limit: PostsPerPage, Offset: (q.PageNumber - 1) * PostsPerPage}
	}
	list, err := s.repomanager.Posts(s.db).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return list, nil
}

func (s *PostService) Count(ctx context.Context) (int64, error) {
	return s.repomanager.Posts(s.db).Count(ctx)
}

// Get returns a post with its comments, newest first.
func (s *PostService) Get(ctx context.Context, id string) (*models.PostWithComments, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.repomanager.Comments(s.db).ListByPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	return &models.PostWithComments{Post: post, Comments: comments}, nil
}

// Update edits a post. Only its author may do so.
func (s *PostService) Update(ctx context.Context, actor auth.Identity, id string, in UpdatePostInput) (*models.Post, error) {
	in.Title, in.Description, in.Category = trimPtr(in.Title), trimPtr(in.Description), trimPtr(in.Category)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != actor.UserID {
		return nil, common.ErrForbidden
	}

	updated, err := s.repomanager.Posts(s.db).Update(ctx, id, posts.Update{
		Title: in.Title, Description: in.Description, Category: in.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	return updated, nil
}

// UpdateImage swaps the post image. Only its author may do so. The previous
// image is removed best-effort after the new one is stored.
func (s *PostService) UpdateImage(ctx context.Context, actor auth.Identity, id string, image io.Reader, contentType string) (*models.Post, error) {
	if image == nil {
		return nil, common.NewValidationError("image", "no image provided")
	}

	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != actor.UserID {
		return nil, common.ErrForbidden
	}

	img, err := s.images.Upload(ctx, image, contentType)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Posts(s.db)
	if err := repo.SetImage(ctx, id, img); err != nil {
		s.discardImage(ctx, img.PublicID)
		return nil, fmt.Errorf("error updating post image: %w", err)
	}

	s.discardImage(ctx, post.Image.PublicID)

	return repo.GetByID(ctx, id)
}

// ToggleLike adds the caller's like, or removes it if present. Both
// statements run in one transaction so a like is never duplicated.
func (s *PostService) ToggleLike(ctx context.Context, actor auth.Identity, id string) (*models.Post, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)
		removed, err := repo.RemoveLike(ctx, id, actor.UserID)
		if err != nil {
			return err
		}
		if removed {
			return nil
		}
		return repo.AddLike(ctx, id, actor.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("error toggling like: %w", err)
	}

	return s.repomanager.Posts(s.db).GetByID(ctx, id)
}

// Delete runs the post cascade.
func (s *PostService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	return s.cascade.DeletePost(ctx, actor, id)
}

func (s *PostService) load(ctx context.Context, id string) (*models.Post, error) {
	if err := requireID("post", id); err != nil {
		return nil, err
	}
	post, err := s.repomanager.Posts(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("post not found: %w", err)
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}
	return post, nil
}

func (s *PostService) discardImage(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.images.Delete(ctx, publicID); err != nil {
		s.logger.Warn(ctx, "image cleanup failed", "public_id", publicID, "error", err)
	}
}
