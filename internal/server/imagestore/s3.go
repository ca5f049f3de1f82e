package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/gophblog/internal/common"
	sc "github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/google/uuid"
)

// MaxImageSize bounds a single upload.
const MaxImageSize = 1 << 20

// maxDeleteBatch is the S3 DeleteObjects limit.
const maxDeleteBatch = 1000

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3API {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

// S3Store implements Store on top of an S3 bucket.
type S3Store struct {
	client    S3API
	bucket    string
	publicURL string
}

// NewS3Store builds an S3 client from the S3* settings in cfg. Path-style
// addressing is used so MinIO endpoints work unchanged.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return NewS3StoreWithClient(client, cfg.S3Bucket, cfg.S3PublicURL), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket, publicURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// randomKey returns images/yyyy/mm/dd/<uuid>.
func randomKey() string {
	d := now()
	return fmt.Sprintf("images/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload stores the image under a fresh key and returns its public URL and key.
func (s *S3Store) Upload(ctx context.Context, r io.Reader, contentType string) (models.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return models.Image{}, common.ExternalError("image upload", err)
	}
	if len(data) > MaxImageSize {
		return models.Image{}, common.NewValidationError("image", "image is larger than 1MB")
	}

	key := randomKey()
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.Image{}, common.ExternalError("image upload", err)
	}

	return models.Image{URL: s.publicURL + "/" + key, PublicID: key}, nil
}

// Delete removes one object. An empty id is a no-op.
func (s *S3Store) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return common.ExternalError("image delete", err)
	}
	return nil
}

// DeleteMany removes objects in batches. Every batch is attempted; the
// failures of all batches are joined.
func (s *S3Store) DeleteMany(ctx context.Context, publicIDs []string) error {
	ids := make([]types.ObjectIdentifier, 0, len(publicIDs))
	for _, id := range publicIDs {
		if id != "" {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(id)})
		}
	}

	var errs []error
	for start := 0; start < len(ids); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(ids))
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	if len(errs) > 0 {
		return common.ExternalError("image bulk delete", errors.Join(errs...))
	}
	return nil
}
