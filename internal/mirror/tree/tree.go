// Package tree stores a hierarchical JSON document as flat leaf rows keyed by
// slash-separated path.
//
// Objects and arrays are expanded into their children; scalars become
// leaves. Writing null, an empty object or an empty array removes the node.
// Arrays are stored under numeric keys and read back as arrays when every
// key of a node is a dense index starting at zero.
package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths with empty, "." or ".." segments.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidValue is returned for values that cannot be stored.
	ErrInvalidValue = errors.New("invalid value")
)

// Leaf is one scalar value at a full path.
type Leaf struct {
	Path  string
	Value json.RawMessage
}

// Clean normalizes p by trimming surrounding slashes and validates every
// segment. The root is the empty string.
func Clean(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return p, nil
}

// Join joins path segments, skipping empty ones.
func Join(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}

// Ancestors returns every proper prefix of p, shortest first. The root is
// not included.
func Ancestors(p string) []string {
	var out []string
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}

// ChildRange returns the half-open key range [lo, hi) containing every path
// strictly below p. '0' is the byte after '/'.
func ChildRange(p string) (lo, hi string) {
	if p == "" {
		return "", "\xff"
	}
	return p + "/", p + "0"
}

// Under reports whether leaf is p itself or lies below it.
func Under(leaf, p string) bool {
	if p == "" {
		return true
	}
	return leaf == p || strings.HasPrefix(leaf, p+"/")
}

// Flatten expands value at base into leaves.
func Flatten(base string, value json.RawMessage) ([]Leaf, error) {
	var leaves []Leaf
	if err := flatten(base, value, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flatten(p string, raw json.RawMessage, out *[]Leaf) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty value at %q", ErrInvalidValue, p)
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("%w: object at %q: %v", ErrInvalidValue, p, err)
		}
		for key, child := range obj {
			if key == "" || strings.Contains(key, "/") {
				return fmt.Errorf("%w: key %q at %q", ErrInvalidPath, key, p)
			}
			if err := flatten(Join(p, key), child, out); err != nil {
				return err
			}
		}
		return nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return fmt.Errorf("%w: array at %q: %v", ErrInvalidValue, p, err)
		}
		for i, child := range arr {
			if err := flatten(Join(p, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
		return nil
	}

	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if p == "" {
		return fmt.Errorf("%w: scalar at the root", ErrInvalidValue)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%w: malformed JSON at %q", ErrInvalidValue, p)
	}
	*out = append(*out, Leaf{Path: p, Value: append(json.RawMessage(nil), raw...)})
	return nil
}

type node struct {
	leaf     json.RawMessage
	children map[string]*node
}

// Build assembles the value at base from leaves at or below it. It returns
// false when no leaf exists there.
func Build(base string, leaves []Leaf) (json.RawMessage, bool, error) {
	root := &node{}
	found := false
	for _, l := range leaves {
		if !Under(l.Path, base) {
			continue
		}
		found = true
		if l.Path == base {
			root.leaf = l.Value
			continue
		}
		rel := l.Path
		if base != "" {
			rel = l.Path[len(base)+1:]
		}
		n := root
		for _, seg := range strings.Split(rel, "/") {
			if n.children == nil {
				n.children = make(map[string]*node)
			}
			child, ok := n.children[seg]
			if !ok {
				child = &node{}
				n.children[seg] = child
			}
			n = child
		}
		n.leaf = l.Value
	}
	if !found {
		return nil, false, nil
	}

	data, err := json.Marshal(root.value())
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %q: %w", base, err)
	}
	return data, true, nil
}

func (n *node) value() any {
	if len(n.children) == 0 {
		return n.leaf
	}

	if idx, ok := denseIndexes(n.children); ok {
		arr := make([]any, len(idx))
		for i, key := range idx {
			arr[i] = n.children[key].value()
		}
		return arr
	}

	obj := make(map[string]any, len(n.children))
	for key, child := range n.children {
		obj[key] = child.value()
	}
	return obj
}

// denseIndexes returns the keys ordered 0..n-1 if they are exactly that set.
func denseIndexes(children map[string]*node) ([]string, bool) {
	keys := make([]int, 0, len(children))
	for key := range children {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || strconv.Itoa(i) != key {
			return nil, false
		}
		keys = append(keys, i)
	}
	sort.Ints(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		if k != i {
			return nil, false
		}
		out[i] = strconv.Itoa(k)
	}
	return out, true
}

// Children splits an object value into its direct children, for PATCH-style
// merges. Non-object values are rejected.
func Children(value json.RawMessage) (map[string]json.RawMessage, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || value[0] != '{' {
		return nil, fmt.Errorf("%w: update must be a JSON object", ErrInvalidValue)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return nil, fmt.Errorf("%w: update: %v", ErrInvalidValue, err)
	}
	for key := range obj {
		if key == "" || strings.Contains(key, "/") {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidPath, key)
		}
	}
	return obj, nil
}
