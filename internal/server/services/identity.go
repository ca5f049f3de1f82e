package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/mailer"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,min=5,max=100,email"`
	Password string `json:"password" validate:"required,complexpassword"`
}

// LoginInput is checked for presence and shape only, so any password that
// was ever accepted at registration can still log in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,min=5,max=100,email"`
	Password string `json:"password" validate:"required"`
}

type resetRequestInput struct {
	Email string `json:"email" validate:"required,min=5,max=100,email"`
}

type newPasswordInput struct {
	Password string `json:"password" validate:"required,complexpassword"`
}

// LoginResult is returned on a successful login. It never carries the hash.
type LoginResult struct {
	models.PublicProfile
	Token string `json:"token"`
}

// IdentityService registers users and proves their identity: login, email
// verification and password reset.
//
// Per user the states are Unregistered -> PendingVerification -> Verified.
// A successful password reset also moves PendingVerification to Verified.
type IdentityService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	tokens        *TokenIssuer
	mailer        mailer.Sender
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
	bcryptCost    int
	clientDomain  string
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenIssuer, sender mailer.Sender,
	logger logging.Logger, cfg *config.Config) *IdentityService {
	return &IdentityService{
		db:            db,
		repomanager:   m,
		tokens:        tokens,
		mailer:        sender,
		logger:        logger.With("module", "identity"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.IdentityTokenValidityDuration,
		bcryptCost:    cfg.BcryptCost,
		clientDomain:  strings.TrimRight(cfg.ClientDomain, "/"),
	}
}

func (s *IdentityService) verifyLink(userID, secret string) string {
	return fmt.Sprintf("%s/users/%s/verify/%s", s.clientDomain, userID, secret)
}

func (s *IdentityService) resetLink(userID, secret string) string {
	return fmt.Sprintf("%s/reset-password/%s/%s", s.clientDomain, userID, secret)
}

func hashPassword(password string, cost int) (string, error) {
	plain := []byte(password)
	defer common.WipeByteArray(plain)

	h, err := bcrypt.GenerateFromPassword(plain, cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", common.NewValidationError("password", `"password" is too long`)
	}
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(h), nil
}

// Register creates an unverified user and emails a verification link.
// Success is reported once the user and its token are stored; email
// delivery is best-effort.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, common.ErrDuplicateIdentity
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := repo.Create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, _, err := s.tokens.IssueOrReuse(ctx, user.ID, models.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user, token.Token)

	return user, nil
}

// Login checks credentials and returns a signed identity token. Unknown
// email and wrong password both yield common.ErrInvalidCredentials. An
// unverified account yields common.ErrVerificationRequired and gets a fresh
// verification email when it has no pending token.
func (s *IdentityService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	plain := []byte(in.Password)
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), plain)
	common.WipeByteArray(plain)
	if err != nil {
		return nil, common.ErrInvalidCredentials
	}

	if !user.IsVerified {
		token, created, err := s.tokens.IssueOrReuse(ctx, user.ID, models.PurposeVerifyEmail)
		if err != nil {
			return nil, err
		}
		if created {
			s.sendVerification(ctx, user, token.Token)
		}
		return nil, common.ErrVerificationRequired
	}

	identityToken, err := auth.IssueIdentityToken(user.ID, user.Role, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("error issuing identity token: %w", err)
	}

	return &LoginResult{PublicProfile: user.PublicProfile(), Token: identityToken}, nil
}

// Verify marks the account verified and consumes the verification token.
func (s *IdentityService) Verify(ctx context.Context, userID, secret string) error {
	if !isID(userID) {
		return common.ErrInvalidLink
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidLink
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	token, err := s.tokens.Validate(ctx, userID, models.PurposeVerifyEmail, secret)
	if err != nil {
		return err
	}

	if err := repo.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidLink
		}
		return fmt.Errorf("error verifying user: %w", err)
	}

	return s.tokens.Consume(ctx, token.ID)
}

// RequestPasswordReset emails a reset link. An unknown email is
// common.ErrNotFound.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	in := resetRequestInput{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := validateStruct(in); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("email not found: %w", common.ErrNotFound)
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	token, _, err := s.tokens.IssueOrReuse(ctx, user.ID, models.PurposeResetPassword)
	if err != nil {
		return err
	}

	subject, body, err := mailer.ResetPasswordEmail(s.resetLink(user.ID, token.Token))
	if err != nil {
		return fmt.Errorf("error rendering email: %w", err)
	}
	s.send(ctx, user.Email, subject, body)

	return nil
}

// CheckResetLink reports whether a reset link is still usable without
// consuming it.
func (s *IdentityService) CheckResetLink(ctx context.Context, userID, secret string) error {
	_, err := s.validateResetLink(ctx, userID, secret)
	return err
}

// ResetPassword stores a new password for the owner of a valid reset link,
// force-verifies the account and consumes the token.
func (s *IdentityService) ResetPassword(ctx context.Context, userID, secret, newPassword string) error {
	if err := validateStruct(newPasswordInput{Password: newPassword}); err != nil {
		return err
	}

	token, err := s.validateResetLink(ctx, userID, secret)
	if err != nil {
		return err
	}

	hash, err := hashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.repomanager.Users(s.db).ResetPassword(ctx, userID, hash); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidLink
		}
		return fmt.Errorf("error resetting password: %w", err)
	}

	return s.tokens.Consume(ctx, token.ID)
}

func (s *IdentityService) validateResetLink(ctx context.Context, userID, secret string) (*models.ProofToken, error) {
	if !isID(userID) {
		return nil, common.ErrInvalidLink
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidLink
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return s.tokens.Validate(ctx, userID, models.PurposeResetPassword, secret)
}

func (s *IdentityService) sendVerification(ctx context.Context, user *models.User, secret string) {
	subject, body, err := mailer.VerificationEmail(s.verifyLink(user.ID, secret))
	if err != nil {
		s.logger.Warn(ctx, "verification email not rendered", "user_id", user.ID, "error", err)
		return
	}
	s.send(ctx, user.Email, subject, body)
}

// send delivers best-effort: failures are logged and never returned.
func (s *IdentityService) send(ctx context.Context, to, subject, body string) {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn(ctx, "email delivery failed", "subject", subject, "error", err)
	}
}
