package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

// Backend is an in-memory implementation of the graphcontent.BlobStore
// interface. Download URLs use the memory:// scheme and are deterministic per
// key.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	updated map[string]time.Time
}

// New creates a new in-memory storage backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
		updated: make(map[string]time.Time),
	}
}

// Upload stores content under objectKey.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	b.updated[objectKey] = time.Now()
	return nil
}

// Download retrieves the content stored under objectKey.
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, graphcontent.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// GetDownloadURL returns a deterministic memory:// URL for objectKey. The
// object does not need to exist yet.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string) (string, error) {
	return "memory://" + objectKey, nil
}

// Delete removes the object stored under objectKey.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return graphcontent.ErrObjectNotFound
	}
	delete(b.objects, objectKey)
	delete(b.updated, objectKey)
	return nil
}

// GetObjectMeta retrieves metadata for an object in memory.
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*graphcontent.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, graphcontent.ErrObjectNotFound
	}

	contentType := "application/octet-stream"
	if len(data) > 0 {
		contentType = http.DetectContentType(data)
	}
	return &graphcontent.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(data)),
		ContentType: contentType,
		UpdatedAt:   b.updated[objectKey],
	}, nil
}

// ObjectCount reports how many objects the backend holds. Intended for tests.
func (b *Backend) ObjectCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
