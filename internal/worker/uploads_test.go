package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/BodaDayo/TODO-Mobile/internal/remote"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

func TestTasksUploadReachesRemote(t *testing.T) {
	adapter, mem := remote.NewMemoryAdapter()
	s, err := New(UploadHandlers(adapter), testConfig(AlwaysOnline))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Stop)
	s.Start()

	task := schema.NewTask("Buy milk", "")
	in, err := TasksInput("u1", []schema.Task{task})
	if err != nil {
		t.Fatalf("TasksInput failed: %v", err)
	}
	if err := s.Enqueue(Key{UserID: "u1", Kind: KindTasks}, in); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	drain(t, s)

	raw, err := mem.Get(context.Background(), schema.TaskPath("u1", task.ID))
	if err != nil {
		t.Fatalf("remote task missing: %v", err)
	}
	var rec schema.TaskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("failed to decode remote task: %v", err)
	}
	if rec.Title != "Buy milk" || rec.TaskCompleted || rec.Starred {
		t.Errorf("remote record = %+v", rec)
	}
}

func TestUploadRetriesWhileRemoteDown(t *testing.T) {
	adapter, mem := remote.NewMemoryAdapter()
	mem.FailNextWrites(2)

	s, err := New(UploadHandlers(adapter), testConfig(AlwaysOnline))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Stop)
	s.Start()

	in, err := CategoriesInput("u1", []schema.Category{schema.NewCategory("Work", "ic_work", "blue")})
	if err != nil {
		t.Fatalf("CategoriesInput failed: %v", err)
	}
	if err := s.Enqueue(Key{UserID: "u1", Kind: KindCategories}, in); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	drain(t, s)

	if n := mem.Writes(schema.CategoriesPath("u1")); n != 1 {
		t.Errorf("expected the third attempt to land, writes = %d", n)
	}
}

func TestUserDetailsAndAvatarHandlers(t *testing.T) {
	adapter, mem := remote.NewMemoryAdapter()
	handlers := UploadHandlers(adapter)
	ctx := context.Background()

	user := schema.User{ID: "u1", Email: "ada@example.com", Name: "Ada", AvatarFilePath: "avatar:default_1"}
	if err := handlers[KindUserDetails](ctx, UserDetailsInput(user)); err != nil {
		t.Fatalf("user details handler failed: %v", err)
	}
	details, err := adapter.ReadUserDetailsOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadUserDetailsOnce failed: %v", err)
	}
	if details.Name != "Ada" || details.AvatarFilePath != "avatar:default_1" {
		t.Errorf("details = %+v", details)
	}

	if err := handlers[KindAvatar](ctx, AvatarInput("u1", "avatar:default_1")); err != nil {
		t.Fatalf("avatar handler failed: %v", err)
	}
	if _, ok := mem.Blob(schema.AvatarPath("u1")); ok {
		t.Error("default avatar should not be uploaded")
	}
}

func TestHandlerInputErrorsArePermanent(t *testing.T) {
	adapter, _ := remote.NewMemoryAdapter()
	handlers := UploadHandlers(adapter)
	ctx := context.Background()

	tests := []struct {
		name string
		kind Kind
		in   Input
	}{
		{"missing user", KindTasks, Input{schema.InputNewDataJSON: "[]"}},
		{"bad tasks json", KindTasks, Input{schema.InputUserID: "u1", schema.InputNewDataJSON: "{"}},
		{"bad categories json", KindCategories, Input{schema.InputUserID: "u1", schema.InputNewDataJSON: "nope"}},
		{"missing avatar file", KindAvatar, AvatarInput("u1", filepath.Join(t.TempDir(), "gone.png"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handlers[tt.kind](ctx, tt.in)
			if !IsPermanent(err) {
				t.Errorf("expected permanent error, got %v", err)
			}
		})
	}
}

func TestSnapshotInputShape(t *testing.T) {
	in, err := TasksInput("u1", nil)
	if err != nil {
		t.Fatalf("TasksInput failed: %v", err)
	}
	if in[schema.InputUserID] != "u1" || in[schema.InputNewDataJSON] != "[]" {
		t.Errorf("input = %v", in)
	}
	if len(in) != 2 {
		t.Errorf("input has extra keys: %v", in)
	}
}
