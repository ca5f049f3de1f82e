package rest

import (
	"context"
	"io"

	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
)

// The interfaces below list what the handlers need from the service layer.
// *services.IdentityService and friends satisfy them.

type IdentityService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Verify(ctx context.Context, userID, secret string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CheckResetLink(ctx context.Context, userID, secret string) error
	ResetPassword(ctx context.Context, userID, secret, newPassword string) error
}

type UserService interface {
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	GetProfile(ctx context.Context, id string) (*services.UserProfile, error)
	UpdateProfile(ctx context.Context, id string, in services.UpdateProfileInput) (*models.User, error)
	UploadProfilePhoto(ctx context.Context, actor auth.Identity, r io.Reader, contentType string) (models.Image, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
}

type PostService interface {
	Create(ctx context.Context, actor auth.Identity, in services.CreatePostInput, image io.Reader, contentType string) (*models.Post, error)
	List(ctx context.Context, q services.ListPostsQuery) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (*models.PostWithComments, error)
	Update(ctx context.Context, actor auth.Identity, id string, in services.UpdatePostInput) (*models.Post, error)
	UpdateImage(ctx context.Context, actor auth.Identity, id string, image io.Reader, contentType string) (*models.Post, error)
	ToggleLike(ctx context.Context, actor auth.Identity, id string) (*models.Post, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
}

type CommentService interface {
	Create(ctx context.Context, actor auth.Identity, in services.CreateCommentInput) (*models.Comment, error)
	List(ctx context.Context) ([]*models.Comment, error)
	Update(ctx context.Context, actor auth.Identity, id string, in services.UpdateCommentInput) (*models.Comment, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
}

type CategoryService interface {
	Create(ctx context.Context, actor auth.Identity, in services.CreateCategoryInput) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// Services bundles the handlers' dependencies.
type Services struct {
	Identity   IdentityService
	Users      UserService
	Posts      PostService
	Comments   CommentService
	Categories CategoryService
}
