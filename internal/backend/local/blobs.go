package local

import (
	"context"
	"io"

	"github.com/modernplatform/modern-platform/internal/backend"
)

// Blobs lets signed-in callers upload; public URLs need no token.
type Blobs struct {
	inner    backend.Blobs
	verifier *verifier
}

func (b *Blobs) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	sub, err := b.verifier.subject(ctx)
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", &backend.APIError{Kind: backend.ErrUnauthorized, Status: 401, Message: "not authenticated"}
	}
	return b.inner.Upload(ctx, bucket, name, body, size, contentType)
}

func (b *Blobs) PublicURL(bucket, path string) string {
	return b.inner.PublicURL(bucket, path)
}
