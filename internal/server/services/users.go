package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/imagestore"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/users"
)

type UpdateProfileInput struct {
	Username *string `json:"username" validate:"omitnil,min=2,max=100"`
	Bio      *string `json:"bio"`
	Password *string `json:"password" validate:"omitnil,complexpassword"`
}

// UserProfile is a user together with the posts they authored.
type UserProfile struct {
	*models.User
	Posts []*models.Post `json:"posts"`
}

// UserService serves profile reads and edits. Deletion goes through the
// CascadeCoordinator.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      imagestore.Store
	cascade     *CascadeCoordinator
	logger      logging.Logger
	bcryptCost  int
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, images imagestore.Store,
	cascade *CascadeCoordinator, logger logging.Logger, bcryptCost int) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		images:      images,
		cascade:     cascade,
		logger:      logger.With("module", "users"),
		bcryptCost:  bcryptCost,
	}
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return list, nil
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.repomanager.Users(s.db).Count(ctx)
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*UserProfile, error) {
	if err := requireID("user", id); err != nil {
		return nil, err
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	userPosts, err := s.repomanager.Posts(s.db).ListByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error listing user posts: %w", err)
	}
	return &UserProfile{User: user, Posts: userPosts}, nil
}

// UpdateProfile applies the provided fields. A new password is rehashed.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*models.User, error) {
	in.Username = trimPtr(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := requireID("user", id); err != nil {
		return nil, err
	}

	upd := users.ProfileUpdate{Username: in.Username, Bio: in.Bio}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return user, nil
}

// UploadProfilePhoto stores a new photo for the caller. The upload itself
// must succeed; removing the previous photo is best-effort.
func (s *UserService) UploadProfilePhoto(ctx context.Context, actor auth.Identity, r io.Reader, contentType string) (models.Image, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return models.Image{}, fmt.Errorf("user not found: %w", err)
	}

	img, err := s.images.Upload(ctx, r, contentType)
	if err != nil {
		return models.Image{}, err
	}

	if err := repo.SetProfilePhoto(ctx, user.ID, img); err != nil {
		s.discardImage(ctx, img.PublicID)
		return models.Image{}, fmt.Errorf("error saving profile photo: %w", err)
	}

	s.discardImage(ctx, user.ProfilePhoto.PublicID)

	return img, nil
}

// Delete runs the user cascade.
func (s *UserService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	return s.cascade.DeleteUser(ctx, actor, id)
}

func (s *UserService) discardImage(ctx context.Context, publicID string) {
	if strings.TrimSpace(publicID) == "" {
		return
	}
	if err := s.images.Delete(ctx, publicID); err != nil {
		s.logger.Warn(ctx, "image cleanup failed", "public_id", publicID, "error", err)
	}
}
