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

type CreateCategoryInput struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

type CategoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCategoryService(db *sql.DB, m repomanager.RepositoryManager) *CategoryService {
	return &CategoryService{db: db, repomanager: m}
}

func (s *CategoryService) Create(ctx context.Context, actor auth.Identity, in CreateCategoryInput) (*models.Category, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	c, err := s.repomanager.Categories(s.db).Create(ctx, &models.Category{UserID: actor.UserID, Title: in.Title})
	if err != nil {
		return nil, fmt.Errorf("error creating category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	list, err := s.repomanager.Categories(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	return list, nil
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := requireID("category", id); err != nil {
		return err
	}
	if err := s.repomanager.Categories(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("category not found: %w", err)
		}
		return fmt.Errorf("error deleting category: %w", err)
	}
	return nil
}
