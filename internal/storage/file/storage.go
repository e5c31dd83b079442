// Package file mirrors published board images into an S3-compatible bucket.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/status-board/internal/config"
)

// Storage provides an S3-compatible storage backend using MinIO.
// Each board is kept under a stable key and overwritten on every run.
type Storage struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// NewStorage creates a new Storage instance connected to the configured server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, cfg config.Storage) (*Storage, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage endpoint is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
	}, nil
}

// Key returns the object name used for filename.
func (s *Storage) Key(filename string) string {
	return path.Join(s.prefix, path.Base(filename))
}

// Save uploads a JPEG of the given size under the board's stable key.
// Returns the object path within the bucket.
func (s *Storage) Save(ctx context.Context, filename string, src io.Reader, size int64) (string, error) {
	objectName := s.Key(filename)

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, src, size, minio.PutObjectOptions{
		ContentType:  "image/jpeg",
		CacheControl: "no-cache",
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}
