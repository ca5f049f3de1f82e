// Package imagestore keeps post and profile images in an S3-compatible
// bucket (MinIO in development) and hands out their public URLs.
package imagestore

import (
	"context"
	"io"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Store uploads and removes binary images. Every failure matches
// common.ErrExternalStore.
type Store interface {
	Upload(ctx context.Context, r io.Reader, contentType string) (models.Image, error)
	Delete(ctx context.Context, publicID string) error
	DeleteMany(ctx context.Context, publicIDs []string) error
}
