package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// postSelect loads a post with its likes folded into a comma-separated list
// ordered by like time.
const postSelect = `
	SELECT p.id, p.title, p.description, p.category, p.user_id, p.image_url, p.image_public_id,
		p.created_at, p.updated_at,
		COALESCE((SELECT string_agg(l.user_id::text, ',' ORDER BY l.created_at)
			FROM post_likes l WHERE l.post_id = p.id), '') AS likes
	FROM posts p`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	p := &models.Post{}
	var likes string
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.UserID,
		&p.Image.URL, &p.Image.PublicID, &p.CreatedAt, &p.UpdatedAt, &likes); err != nil {
		return nil, err
	}
	p.Likes = splitLikes(likes)
	return p, nil
}

func splitLikes(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query := `
		INSERT INTO posts (title, description, category, user_id, image_url, image_public_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		post.Title, post.Description, post.Category, post.UserID, post.Image.URL, post.Image.PublicID).
		Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	return post, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.Post, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}

	query := postSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	return r.selectPosts(ctx, query, args...)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Post, error) {
	return r.selectPosts(ctx, postSelect+` WHERE p.user_id = $1 ORDER BY p.created_at DESC`, userID)
}

func (r *PostgresRepository) selectPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select posts: %w", err)
	}
	defer rows.Close()

	result := []*models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd Update) (*models.Post, error) {
	query := `
		UPDATE posts SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			category = COALESCE($4, category),
			updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id,
		nullString(upd.Title), nullString(upd.Description), nullString(upd.Category))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected error: %w", err)
	} else if n == 0 {
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) SetImage(ctx context.Context, id string, image models.Image) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET image_url = $2, image_public_id = $3, updated_at = now() WHERE id = $1`,
		id, image.URL, image.PublicID)
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

func (r *PostgresRepository) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// AddLike is a no-op when the like already exists.
func (r *PostgresRepository) AddLike(ctx context.Context, postID, userID string) error {
	query := `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteLikesByPost(ctx context.Context, postID string) error {
	return r.exec(ctx, `DELETE FROM post_likes WHERE post_id = $1`, postID)
}

func (r *PostgresRepository) DeleteLikesByUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM post_likes WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteLikesOnPostsOf(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM post_likes WHERE post_id IN (SELECT id FROM posts WHERE user_id = $1)`, userID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
