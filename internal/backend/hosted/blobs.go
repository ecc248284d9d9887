package hosted

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Blobs implements backend.Blobs with the Storage API.
type Blobs struct{ c *client }

func objectPath(bucket, name string) string {
	return url.PathEscape(bucket) + "/" + strings.TrimLeft(name, "/")
}

func (b *Blobs) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	req := b.c.request(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(body)
	if size >= 0 {
		req.SetContentLength(true)
	}
	resp, err := req.Post("/storage/v1/object/" + objectPath(bucket, name))
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return name, nil
}

func (b *Blobs) PublicURL(bucket, path string) string {
	return b.c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, path)
}
