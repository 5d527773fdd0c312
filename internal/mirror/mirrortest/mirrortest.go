// Package mirrortest holds conformance tests every mirror.Store must pass.
package mirrortest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BodaDayo/TODO-Mobile/internal/mirror"
)

// RunStoreTests exercises a Store implementation. newStore must return an
// empty store; it is called once per subtest.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) mirror.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(context.Background(), "users/nobody")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("expected missing path")
		}
	})

	t.Run("SetReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustSet(t, s, "users/u1/tasks", `{"a":{"title":"A"},"b":{"title":"B"}}`)
		mustSet(t, s, "users/u1/tasks", `{"b":{"title":"B2","starred":true}}`)

		if _, ok, _ := s.Get(ctx, "users/u1/tasks/a"); ok {
			t.Error("Set did not replace the subtree")
		}
		if got := mustGet(t, s, "users/u1/tasks/b"); got != `{"starred":true,"title":"B2"}` {
			t.Errorf("tasks/b = %s", got)
		}
	})

	t.Run("ArraysRoundTrip", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "users/u1/categories", `[{"categoryId":"c1"},{"categoryId":"c2"}]`)

		var got []map[string]string
		if err := json.Unmarshal([]byte(mustGet(t, s, "users/u1/categories")), &got); err != nil {
			t.Fatalf("categories did not read back as an array: %v", err)
		}
		if len(got) != 2 || got[1]["categoryId"] != "c2" {
			t.Errorf("categories = %v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "users/u1", `{"userDetails":{"name":"Ada"},"categories":[{"categoryId":"c1"}]}`)

		if err := s.Update(context.Background(), "users/u1", json.RawMessage(`{"userDetails":{"name":"Grace"}}`)); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got := mustGet(t, s, "users/u1/userDetails/name"); got != `"Grace"` {
			t.Errorf("name = %s", got)
		}
		if got := mustGet(t, s, "users/u1/categories/0/categoryId"); got != `"c1"` {
			t.Errorf("sibling lost: %s", got)
		}
	})

	t.Run("DeleteKeepsPrefixSiblings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSet(t, s, "users", `{"u1":{"x":1},"u10":{"x":2}}`)

		if err := s.Delete(ctx, "users/u1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok, _ := s.Get(ctx, "users/u1"); ok {
			t.Error("users/u1 still present")
		}
		if got := mustGet(t, s, "users/u10/x"); got != "2" {
			t.Errorf("users/u10/x = %s", got)
		}
	})

	t.Run("InvalidPath", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(context.Background(), "users/../x", json.RawMessage(`1`)); err == nil {
			t.Error("expected error for invalid path")
		}
	})

	t.Run("Blobs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.GetBlob(ctx, "avatars/u1"); !errors.Is(err, mirror.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.PutBlob(ctx, "avatars/u1", mirror.Blob{ContentType: "image/png", Data: []byte("png")}); err != nil {
			t.Fatalf("PutBlob failed: %v", err)
		}
		if err := s.PutBlob(ctx, "avatars/u1", mirror.Blob{ContentType: "image/jpeg", Data: []byte("jpg")}); err != nil {
			t.Fatalf("PutBlob overwrite failed: %v", err)
		}
		blob, err := s.GetBlob(ctx, "avatars/u1")
		if err != nil {
			t.Fatalf("GetBlob failed: %v", err)
		}
		if blob.ContentType != "image/jpeg" || string(blob.Data) != "jpg" {
			t.Errorf("blob = %s %q", blob.ContentType, blob.Data)
		}
		if blob.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not set")
		}
	})
}

func mustSet(t *testing.T, s mirror.Store, path, value string) {
	t.Helper()
	if err := s.Set(context.Background(), path, json.RawMessage(value)); err != nil {
		t.Fatalf("Set(%s) failed: %v", path, err)
	}
}

func mustGet(t *testing.T, s mirror.Store, path string) string {
	t.Helper()
	v, ok, err := s.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", path, err)
	}
	if !ok {
		t.Fatalf("Get(%s): not found", path)
	}
	return string(v)
}
