package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	logpkg "github.com/benvon/taskboard/internal/logger"
)

// Config locates the bucket holding attachments
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinioStore is the object store backed by minio-go
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioStore connects to the object store and makes sure the bucket exists
func NewMinioStore(ctx context.Context, cfg Config, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("blob endpoint and bucket are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("blob_bucket_created", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Upload stores body under path. size must be known up front
func (s *MinioStore) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if err := CheckSize(size); err != nil {
		return err
	}
	info, err := s.client.PutObject(ctx, s.bucket, path, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	s.logger.Debug("blob_uploaded",
		zap.String("path", logpkg.SanitizePath(path)),
		zap.Int64("size", info.Size),
	)
	return nil
}

// Download opens the object at path for reading
func (s *MinioStore) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before streaming starts.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return obj, nil
}

// Remove deletes the object at path. Removing a missing object succeeds
func (s *MinioStore) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// SignedURL returns a time-limited GET URL for path
func (s *MinioStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", path, err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable; used by the health checker
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("blob store unreachable: %w", err)
	}
	return nil
}
