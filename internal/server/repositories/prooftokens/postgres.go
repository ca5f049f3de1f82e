package prooftokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, userID string, purpose models.ProofPurpose) (*models.ProofToken, error) {
	query := `
		SELECT id, user_id, purpose, token, created_at
		FROM proof_tokens
		WHERE user_id = $1 AND purpose = $2
	`
	t := &models.ProofToken{}
	var p string
	if err := r.db.QueryRowContext(ctx, query, userID, string(purpose)).
		Scan(&t.ID, &t.UserID, &p, &t.Token, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Purpose = models.ProofPurpose(p)
	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.ProofToken) (bool, error) {
	query := `
		INSERT INTO proof_tokens (user_id, purpose, token)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, purpose) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, token.UserID, string(token.Purpose), token.Token).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error performing sql request: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proof_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM proof_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
