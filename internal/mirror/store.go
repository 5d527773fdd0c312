package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/mirror/tree"
)

// ErrNotFound is returned when no blob exists at a path.
var ErrNotFound = errors.New("not found")

// Blob is a stored binary object.
type Blob struct {
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// Store persists the document tree and blobs behind the server.
type Store interface {
	// Get returns the value at path, or false when nothing is stored there.
	Get(ctx context.Context, path string) (json.RawMessage, bool, error)
	// Set replaces the value at path. An empty value removes it.
	Set(ctx context.Context, path string, value json.RawMessage) error
	// Update merges the direct children of an object value into path.
	Update(ctx context.Context, path string, value json.RawMessage) error
	// Delete removes path and everything below it.
	Delete(ctx context.Context, path string) error
	// PutBlob stores a blob at path.
	PutBlob(ctx context.Context, path string, blob Blob) error
	// GetBlob returns the blob at path or ErrNotFound.
	GetBlob(ctx context.Context, path string) (*Blob, error)
	Close() error
}

// MemoryStore is a Store that keeps everything in process memory.
type MemoryStore struct {
	tree *tree.Memory

	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree:  tree.NewMemory(),
		blobs: make(map[string]Blob),
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	return m.tree.Get(path)
}

func (m *MemoryStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	return m.tree.Set(path, value)
}

func (m *MemoryStore) Update(ctx context.Context, path string, value json.RawMessage) error {
	return m.tree.Update(path, value)
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	return m.tree.Delete(path)
}

func (m *MemoryStore) PutBlob(ctx context.Context, path string, blob Blob) error {
	p, err := tree.Clean(path)
	if err != nil {
		return err
	}
	if blob.UpdatedAt.IsZero() {
		blob.UpdatedAt = time.Now()
	}
	blob.Data = bytes.Clone(blob.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[p] = blob
	return nil
}

func (m *MemoryStore) GetBlob(ctx context.Context, path string) (*Blob, error) {
	p, err := tree.Clean(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[p]
	if !ok {
		return nil, ErrNotFound
	}
	return &blob, nil
}

func (m *MemoryStore) Close() error { return nil }
