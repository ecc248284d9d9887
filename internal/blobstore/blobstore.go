// Package blobstore implements backend.Blobs for the local backend on MinIO,
// S3 or process memory.
package blobstore

import (
	"net/url"
	"strings"
)

// Buckets the front-end uploads into.
const (
	BucketAvatars = "avatars"
	BucketPosts   = "posts"
)

// publicURL joins base, bucket and the object path.
func publicURL(base, bucket, path string) string {
	base = strings.TrimRight(base, "/")
	u, err := url.JoinPath(base, bucket, path)
	if err != nil {
		return base + "/" + bucket + "/" + strings.TrimLeft(path, "/")
	}
	return u
}
