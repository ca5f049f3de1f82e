package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
)

type CreateCommentInput struct {
	PostID string `json:"postId" validate:"required,uuid"`
	Text   string `json:"text" validate:"required"`
}

type UpdateCommentInput struct {
	Text string `json:"text" validate:"required"`
}

type CommentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCommentService(db *sql.DB, m repomanager.RepositoryManager) *CommentService {
	return &CommentService{db: db, repomanager: m}
}

// Create stores a comment on an existing post, snapshotting the author's
// current username.
func (s *CommentService) Create(ctx context.Context, actor auth.Identity, in CreateCommentInput) (*models.Comment, error) {
	in.PostID = strings.TrimSpace(in.PostID)
	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if _, err := s.repomanager.Posts(s.db).GetByID(ctx, in.PostID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("post not found: %w", err)
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}

	author, err := s.repomanager.Users(s.db).GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	c, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		PostID:   in.PostID,
		UserID:   author.ID,
		Text:     in.Text,
		Username: author.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating comment: %w", err)
	}
	return c, nil
}

func (s *CommentService) List(ctx context.Context) ([]*models.Comment, error) {
	list, err := s.repomanager.Comments(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	return list, nil
}

// Update edits the text of a comment. Only its author may do so.
func (s *CommentService) Update(ctx context.Context, actor auth.Identity, id string, in UpdateCommentInput) (*models.Comment, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.UserID {
		return nil, common.ErrForbidden
	}

	updated, err := s.repomanager.Comments(s.db).UpdateText(ctx, id, in.Text)
	if err != nil {
		return nil, fmt.Errorf("error updating comment: %w", err)
	}
	return updated, nil
}

// Delete removes a comment for its author or an admin.
func (s *CommentService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != actor.UserID && !actor.IsAdmin() {
		return common.ErrForbidden
	}
	if err := s.repomanager.Comments(s.db).Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting comment: %w", err)
	}
	return nil
}

func (s *CommentService) load(ctx context.Context, id string) (*models.Comment, error) {
	if err := requireID("comment", id); err != nil {
		return nil, err
	}
	c, err := s.repomanager.Comments(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("comment not found: %w", err)
		}
		return nil, fmt.Errorf("error loading comment: %w", err)
	}
	return c, nil
}
