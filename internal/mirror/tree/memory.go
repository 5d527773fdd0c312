package tree

import (
	"encoding/json"
	"sync"
)

// Memory is an in-memory document tree safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	leaves map[string]json.RawMessage
}

// NewMemory returns an empty tree.
func NewMemory() *Memory {
	return &Memory{leaves: make(map[string]json.RawMessage)}
}

// Get returns the value at p, or false if nothing is stored there.
func (m *Memory) Get(p string) (json.RawMessage, bool, error) {
	p, err := Clean(p)
	if err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var leaves []Leaf
	for path, v := range m.leaves {
		if Under(path, p) {
			leaves = append(leaves, Leaf{Path: path, Value: v})
		}
	}
	return Build(p, leaves)
}

// Set replaces the node at p with value.
func (m *Memory) Set(p string, value json.RawMessage) error {
	p, err := Clean(p)
	if err != nil {
		return err
	}
	leaves, err := Flatten(p, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(p, leaves)
	return nil
}

// Update merges the direct children of an object value into the node at p.
func (m *Memory) Update(p string, value json.RawMessage) error {
	p, err := Clean(p)
	if err != nil {
		return err
	}
	children, err := Children(value)
	if err != nil {
		return err
	}

	staged := make(map[string][]Leaf, len(children))
	for key, child := range children {
		cp := Join(p, key)
		leaves, err := Flatten(cp, child)
		if err != nil {
			return err
		}
		staged[cp] = leaves
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for cp, leaves := range staged {
		m.replaceLocked(cp, leaves)
	}
	return nil
}

// Delete removes the node at p and everything below it.
func (m *Memory) Delete(p string) error {
	p, err := Clean(p)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(p, nil)
	return nil
}

// Len returns the number of stored leaves.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leaves)
}

func (m *Memory) replaceLocked(p string, leaves []Leaf) {
	for path := range m.leaves {
		if Under(path, p) {
			delete(m.leaves, path)
		}
	}
	// A scalar ancestor would shadow the new subtree.
	for _, a := range Ancestors(p) {
		delete(m.leaves, a)
	}
	for _, l := range leaves {
		m.leaves[l.Path] = l.Value
	}
}
