package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicBaseURL is prefixed to "<bucket>/<path>" for public URLs.
	PublicBaseURL string
}

// MinIOStore stores blobs as MinIO objects, one bucket per front-end bucket.
type MinIOStore struct {
	client     *minio.Client
	publicBase string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewMinIOStore creates a MinIO client. Buckets are created on first upload.
func NewMinIOStore(cfg *MinIOConfig) (*MinIOStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &MinIOStore{client: mc, publicBase: base, ensured: map[string]bool{}}, nil
}

// ensureBucket creates bucket once per process (idempotent).
func (s *MinIOStore) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[bucket] {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := s.client.BucketExists(ctx, bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	s.ensured[bucket] = true
	return nil
}

func (s *MinIOStore) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}
	info, err := s.client.PutObject(ctx, bucket, name, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put %s/%s: %w", bucket, name, err)
	}
	return info.Key, nil
}

func (s *MinIOStore) PublicURL(bucket, path string) string {
	return publicURL(s.publicBase, bucket, path)
}
