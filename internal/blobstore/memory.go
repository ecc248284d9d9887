package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a blob held by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process memory; the web layer serves them
// back under PublicBaseURL.
type MemoryStore struct {
	mu         sync.RWMutex
	objects    map[string]Object
	publicBase string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	if publicBase == "" {
		publicBase = "/blobs"
	}
	return &MemoryStore{objects: map[string]Object{}, publicBase: publicBase}
}

func (m *MemoryStore) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucket + "/" + name
	if _, ok := m.objects[key]; ok {
		return "", fmt.Errorf("object %s already exists", key)
	}
	m.objects[key] = Object{Data: buf.Bytes(), ContentType: contentType}
	return name, nil
}

func (m *MemoryStore) PublicURL(bucket, path string) string {
	return publicURL(m.publicBase, bucket, path)
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[bucket+"/"+path]
	return o, ok
}
