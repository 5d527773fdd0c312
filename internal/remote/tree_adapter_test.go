package remote

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

func TestWriteTasksLayout(t *testing.T) {
	adapter, mem := NewMemoryAdapter()
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tasks := []schema.Task{
		{ID: "t1", Title: "Buy milk", CategoryIDs: []string{}},
		{ID: "t2", Title: "File taxes", Completed: true, DueAt: &due, CategoryIDs: []string{"c1"}},
	}
	if err := adapter.WriteTasks(ctx, "u1", tasks); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}

	raw, err := mem.Get(ctx, schema.TaskPath("u1", "t1"))
	if err != nil {
		t.Fatalf("Get task failed: %v", err)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if rec["title"] != "Buy milk" || rec["taskCompleted"] != false || rec["starred"] != false {
		t.Errorf("record = %v", rec)
	}

	raw, err = mem.Get(ctx, schema.TaskPath("u1", "t2")+"/dueDateTime")
	if err != nil {
		t.Fatalf("Get dueDateTime failed: %v", err)
	}
	if string(raw) != "1772355600000" {
		t.Errorf("dueDateTime = %s", raw)
	}
}

func TestWriteTasksRemovesDeleted(t *testing.T) {
	adapter, mem := NewMemoryAdapter()
	ctx := context.Background()

	if err := adapter.WriteTasks(ctx, "u1", []schema.Task{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}
	if err := adapter.WriteTasks(ctx, "u1", []schema.Task{{ID: "b", Title: "B"}}); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}
	if _, err := mem.Get(ctx, schema.TaskPath("u1", "a")); !IsNotFound(err) {
		t.Errorf("deleted task still on remote: %v", err)
	}

	if err := adapter.WriteTasks(ctx, "u1", nil); err != nil {
		t.Fatalf("WriteTasks(nil) failed: %v", err)
	}
	if _, err := adapter.ReadTasksOnce(ctx, "u1"); !errors.Is(err, ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable for empty task list, got %v", err)
	}
}

func TestReadTasksRoundTrip(t *testing.T) {
	adapter, _ := NewMemoryAdapter()
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	in := []schema.Task{
		{ID: "b", Title: "Second", Starred: true, CategoryIDs: []string{"c1", "c2"}},
		{ID: "a", Title: "First", Description: "desc", DueAt: &due},
	}
	if err := adapter.WriteTasks(ctx, "u1", in); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}

	out, err := adapter.ReadTasksOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadTasksOnce failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("tasks = %+v", out)
	}
	if out[0].DueAt == nil || !out[0].DueAt.Equal(due) || out[0].Description != "desc" {
		t.Errorf("task a = %+v", out[0])
	}
	if !out[1].Starred || len(out[1].CategoryIDs) != 2 {
		t.Errorf("task b = %+v", out[1])
	}
	if out[0].CategoryIDs == nil {
		t.Error("CategoryIDs should be empty, not nil")
	}
}

func TestReadTasksNumericIDs(t *testing.T) {
	adapter, _ := NewMemoryAdapter()
	ctx := context.Background()

	in := []schema.Task{{ID: "0", Title: "zero"}, {ID: "1", Title: "one"}}
	if err := adapter.WriteTasks(ctx, "u1", in); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}
	out, err := adapter.ReadTasksOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadTasksOnce failed: %v", err)
	}
	if len(out) != 2 || out[0].Title != "zero" {
		t.Errorf("tasks = %+v", out)
	}
}

func TestUserDetailsRoundTrip(t *testing.T) {
	adapter, _ := NewMemoryAdapter()
	ctx := context.Background()

	if _, err := adapter.ReadUserDetailsOnce(ctx, "u1"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	want := schema.UserDetails{Name: "Ada", Occupation: "Engineer", AvatarFilePath: "avatar:default_2"}
	if err := adapter.WriteUserDetails(ctx, "u1", want); err != nil {
		t.Fatalf("WriteUserDetails failed: %v", err)
	}
	got, err := adapter.ReadUserDetailsOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadUserDetailsOnce failed: %v", err)
	}
	if *got != want {
		t.Errorf("details = %+v, want %+v", *got, want)
	}
}

func TestWriteCategoriesIsList(t *testing.T) {
	adapter, mem := NewMemoryAdapter()
	ctx := context.Background()

	categories := []schema.Category{
		{ID: "c1", Name: "Work", IconIdentifier: "ic_work", ColorIdentifier: "blue"},
		{ID: "c2", Name: "Home", IconIdentifier: "ic_home", ColorIdentifier: "green"},
	}
	if err := adapter.WriteCategories(ctx, "u1", categories); err != nil {
		t.Fatalf("WriteCategories failed: %v", err)
	}

	raw, err := mem.Get(ctx, schema.CategoriesPath("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var got []schema.Category
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("categories are not a list: %v (%s)", err, raw)
	}
	if len(got) != 2 || got[1] != categories[1] {
		t.Errorf("categories = %+v", got)
	}
}

func TestAvatar(t *testing.T) {
	adapter, mem := NewMemoryAdapter()
	ctx := context.Background()

	if _, err := adapter.ResolveAvatarDownloadURL(ctx, "u1"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	// Default avatars have no file behind them.
	if err := adapter.WriteAvatar(ctx, "u1", "avatar:default_3"); err != nil {
		t.Fatalf("WriteAvatar(default) failed: %v", err)
	}
	if _, ok := mem.Blob(schema.AvatarPath("u1")); ok {
		t.Fatal("default avatar was uploaded")
	}

	file := filepath.Join(t.TempDir(), "me.png")
	if err := os.WriteFile(file, []byte("image-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write avatar: %v", err)
	}
	if err := adapter.WriteAvatar(ctx, "u1", file); err != nil {
		t.Fatalf("WriteAvatar failed: %v", err)
	}
	data, ok := mem.Blob(schema.AvatarPath("u1"))
	if !ok || string(data) != "image-bytes" {
		t.Errorf("blob = %q, %v", data, ok)
	}

	url, err := adapter.ResolveAvatarDownloadURL(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveAvatarDownloadURL failed: %v", err)
	}
	if url != "memory://avatars/u1" {
		t.Errorf("url = %s", url)
	}

	err = adapter.WriteAvatar(ctx, "u1", filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, ErrUploadFailed) || !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing file, got %v", err)
	}
}

func TestOfflineAndFailures(t *testing.T) {
	adapter, mem := NewMemoryAdapter()
	ctx := context.Background()

	mem.SetOffline(true)
	err := adapter.WriteTasks(ctx, "u1", []schema.Task{{ID: "a", Title: "A"}})
	if !errors.Is(err, ErrUploadFailed) || !errors.Is(err, ErrRemoteUnavailable) {
		t.Errorf("offline write error = %v", err)
	}
	_, err = adapter.ReadTasksOnce(ctx, "u1")
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Reason != Unreachable {
		t.Errorf("offline read error = %v", err)
	}
	if err := adapter.Ping(ctx); err == nil {
		t.Error("Ping succeeded while offline")
	}

	mem.SetOffline(false)
	mem.FailNextWrites(1)
	if err := adapter.WriteTasks(ctx, "u1", []schema.Task{{ID: "a", Title: "A"}}); !errors.Is(err, ErrUploadFailed) {
		t.Errorf("injected failure error = %v", err)
	}
	if err := adapter.WriteTasks(ctx, "u1", []schema.Task{{ID: "a", Title: "A"}}); err != nil {
		t.Errorf("write after injected failure: %v", err)
	}
	if n := mem.Writes(schema.TasksPath("u1")); n != 1 {
		t.Errorf("Writes = %d, want 1", n)
	}
}

func TestUnavailableErrorReasons(t *testing.T) {
	tests := []struct {
		err      error
		notFound bool
	}{
		{notFound("users/u1"), true},
		{unreachable("users/u1", errOffline), false},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, ErrRemoteUnavailable) {
			t.Errorf("%v does not match ErrRemoteUnavailable", tt.err)
		}
		if IsNotFound(tt.err) != tt.notFound {
			t.Errorf("IsNotFound(%v) = %v", tt.err, !tt.notFound)
		}
	}
}
