package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3 or S3-compatible endpoint.
type S3Config struct {
	Region    string
	Endpoint  string // empty for AWS itself
	AccessKey string
	SecretKey string
	// PathStyle addresses buckets as "<endpoint>/<bucket>", needed by most
	// S3-compatible servers.
	PathStyle     bool
	PublicBaseURL string
}

// putObjectAPI is the part of *s3.Client the store uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client     putObjectAPI
	publicBase string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = cfg.Endpoint
		} else {
			base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
	}
	return &S3Store{client: client, publicBase: base}, nil
}

func (s *S3Store) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(name),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s/%s: %w", bucket, name, err)
	}
	return name, nil
}

func (s *S3Store) PublicURL(bucket, path string) string {
	return publicURL(s.publicBase, bucket, path)
}
