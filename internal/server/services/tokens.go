package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
)

// TokenIssuer manages single-use proof tokens, one per (user, purpose).
type TokenIssuer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	newSecret   func() (string, error)
}

func NewTokenIssuer(db *sql.DB, m repomanager.RepositoryManager) *TokenIssuer {
	return &TokenIssuer{
		db:          db,
		repomanager: m,
		newSecret: func() (string, error) {
			return common.MakeRandHexString(common.ProofSecretSize)
		},
	}
}

// IssueOrReuse returns the active token for (userID, purpose), creating one
// when none exists. created reports whether a new token was stored.
func (ti *TokenIssuer) IssueOrReuse(ctx context.Context, userID string, purpose models.ProofPurpose) (token *models.ProofToken, created bool, err error) {
	repo := ti.repomanager.ProofTokens(ti.db)

	token, err = repo.Find(ctx, userID, purpose)
	if err == nil {
		return token, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, fmt.Errorf("error searching proof token: %w", err)
	}

	secret, err := ti.newSecret()
	if err != nil {
		return nil, false, fmt.Errorf("error generating proof secret: %w", err)
	}

	token = &models.ProofToken{UserID: userID, Purpose: purpose, Token: secret}
	inserted, err := repo.Create(ctx, token)
	if err != nil {
		return nil, false, fmt.Errorf("error creating proof token: %w", err)
	}
	if inserted {
		return token, true, nil
	}

	// A concurrent request stored its token first; hand out that one.
	token, err = repo.Find(ctx, userID, purpose)
	if err != nil {
		return nil, false, fmt.Errorf("error searching proof token: %w", err)
	}
	return token, false, nil
}

// Validate returns the token for (userID, purpose) if its secret equals
// secret. Any mismatch or absence is common.ErrInvalidLink.
func (ti *TokenIssuer) Validate(ctx context.Context, userID string, purpose models.ProofPurpose, secret string) (*models.ProofToken, error) {
	if secret == "" || !isID(userID) {
		return nil, common.ErrInvalidLink
	}

	token, err := ti.repomanager.ProofTokens(ti.db).Find(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidLink
		}
		return nil, fmt.Errorf("error searching proof token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(token.Token), []byte(secret)) != 1 {
		return nil, common.ErrInvalidLink
	}
	return token, nil
}

// Consume deletes the token. It must run after the state change the token
// authorizes has been stored. A token that is already gone yields
// common.ErrInvalidLink.
func (ti *TokenIssuer) Consume(ctx context.Context, tokenID string) error {
	if err := ti.repomanager.ProofTokens(ti.db).Delete(ctx, tokenID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidLink
		}
		return fmt.Errorf("error deleting proof token: %w", err)
	}
	return nil
}
