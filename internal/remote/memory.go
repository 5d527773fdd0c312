package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/BodaDayo/TODO-Mobile/internal/mirror/tree"
)

var errOffline = errors.New("network is offline")

// Memory is an in-process Store for tests and offline development. It can
// simulate an unreachable network and inject write failures.
type Memory struct {
	tree *tree.Memory

	mu        sync.Mutex
	blobs     map[string]memoryBlob
	offline   bool
	failNext  int
	writes    map[string]int
	writeHook func(ctx context.Context, path string) error
}

type memoryBlob struct {
	contentType string
	data        []byte
}

// NewMemory returns an empty, reachable memory store.
func NewMemory() *Memory {
	return &Memory{
		tree:   tree.NewMemory(),
		blobs:  make(map[string]memoryBlob),
		writes: make(map[string]int),
	}
}

// NewMemoryAdapter returns an Adapter backed by a new Memory store.
func NewMemoryAdapter() (*TreeAdapter, *Memory) {
	m := NewMemory()
	return NewTreeAdapter(m), m
}

// SetOffline toggles simulated unreachability.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// FailNextWrites makes the next n writes fail.
func (m *Memory) FailNextWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetWriteHook installs fn to run before every write. A non-nil error from
// fn fails the write.
func (m *Memory) SetWriteHook(fn func(ctx context.Context, path string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeHook = fn
}

// Writes returns how many successful writes path has received.
func (m *Memory) Writes(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[path]
}

// Blob returns the stored bytes at path.
func (m *Memory) Blob(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[path]
	return b.data, ok
}

// Tree exposes the underlying document tree for seeding and inspection.
func (m *Memory) Tree() *tree.Memory {
	return m.tree
}

// Get returns the value at path.
func (m *Memory) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := m.reachable(ctx, path); err != nil {
		return nil, err
	}
	v, ok, err := m.tree.Get(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(path)
	}
	return v, nil
}

// Set replaces the value at path.
func (m *Memory) Set(ctx context.Context, path string, value json.RawMessage) error {
	if err := m.beginWrite(ctx, path); err != nil {
		return err
	}
	if err := m.tree.Set(path, value); err != nil {
		return err
	}
	m.countWrite(path)
	return nil
}

// PutBlob stores body at path.
func (m *Memory) PutBlob(ctx context.Context, path, contentType string, body io.Reader) error {
	if err := m.beginWrite(ctx, path); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}

	m.mu.Lock()
	m.blobs[path] = memoryBlob{contentType: contentType, data: bytes.Clone(data)}
	m.writes[path]++
	m.mu.Unlock()
	return nil
}

// BlobURL returns a memory:// URL for a stored blob.
func (m *Memory) BlobURL(ctx context.Context, path string) (string, error) {
	if err := m.reachable(ctx, path); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[path]; !ok {
		return "", notFound(path)
	}
	return "memory://" + path, nil
}

// Ping fails while offline.
func (m *Memory) Ping(ctx context.Context) error {
	return m.reachable(ctx, "")
}

func (m *Memory) reachable(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return unreachable(path, errOffline)
	}
	return nil
}

func (m *Memory) beginWrite(ctx context.Context, path string) error {
	if err := m.reachable(ctx, path); err != nil {
		return err
	}

	m.mu.Lock()
	hook := m.writeHook
	fail := m.failNext > 0
	if fail {
		m.failNext--
	}
	m.mu.Unlock()

	if fail {
		return fmt.Errorf("injected failure writing %s", path)
	}
	if hook != nil {
		return hook(ctx, path)
	}
	return nil
}

func (m *Memory) countWrite(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[path]++
}
