package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/remote"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

func setupStore(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "todo.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	store.SetLogger(log.New(io.Discard, "", 0))
	t.Cleanup(func() { store.Close() })
	return store
}

func setupCoordinator(t *testing.T) (*Coordinator, *db.DB, *remote.TreeAdapter, *remote.Memory) {
	t.Helper()

	store := setupStore(t)
	adapter, mem := remote.NewMemoryAdapter()
	c := New(store, adapter, &Config{
		Intn:   func(n int) int { return n - 1 },
		Logger: log.New(io.Discard, "", 0),
	})
	return c, store, adapter, mem
}

func taskIDs(t *testing.T, store *db.DB) []string {
	t.Helper()

	tasks, err := store.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var lastDefault = schema.DefaultAvatars[len(schema.DefaultAvatars)-1]

func TestColdImportReplacesPreviousAccount(t *testing.T) {
	c, store, adapter, _ := setupCoordinator(t)
	ctx := context.Background()

	// Account B is cached with two tasks.
	if _, err := c.SignUp(ctx, Account{ID: "b", Email: "b@example.com"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	for _, id := range []string{"b-1", "b-2"} {
		if err := store.PutTask(ctx, schema.Task{ID: id, Title: "B task"}); err != nil {
			t.Fatalf("PutTask failed: %v", err)
		}
	}

	// Account A has its own remote state.
	remoteTasks := []schema.Task{
		{ID: "a-1", Title: "Plan trip", Starred: true},
		{ID: "a-2", Title: "Book hotel", Completed: true},
	}
	if err := adapter.WriteTasks(ctx, "a", remoteTasks); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}
	if err := adapter.WriteUserDetails(ctx, "a", schema.UserDetails{Name: "Ada", Occupation: "Pilot", AvatarFilePath: "avatar:default_2"}); err != nil {
		t.Fatalf("WriteUserDetails failed: %v", err)
	}

	res, err := c.SignIn(ctx, Account{ID: "a", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.Outcome != OutcomeCold {
		t.Errorf("Outcome = %v, want cold import", res.Outcome)
	}
	if res.Tasks != 2 {
		t.Errorf("Tasks = %d, want 2", res.Tasks)
	}

	if got := taskIDs(t, store); !equalIDs(got, []string{"a-1", "a-2"}) {
		t.Errorf("local tasks = %v, want [a-1 a-2]", got)
	}

	user, err := store.CurrentUser(ctx)
	if err != nil || user == nil {
		t.Fatalf("CurrentUser = %v, %v", user, err)
	}
	if user.ID != "a" || user.Name != "Ada" || user.Occupation != "Pilot" {
		t.Errorf("user = %+v", user)
	}
	if user.AvatarFilePath != "avatar:default_2" {
		t.Errorf("avatar = %q, want the remote default avatar", user.AvatarFilePath)
	}

	active, err := c.ActiveUser(ctx)
	if err != nil || active != "a" {
		t.Errorf("ActiveUser = %q, %v; want a", active, err)
	}
}

func TestWarmResumeKeepsTasks(t *testing.T) {
	c, store, adapter, _ := setupCoordinator(t)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, Account{ID: "a", Email: "old@example.com", Name: "Ada"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	local := schema.Task{ID: "local-1", Title: "Edited offline", Description: "details", Starred: true}
	if err := store.PutTask(ctx, local); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	// Remote state that must not be pulled on a warm resume.
	if err := adapter.WriteTasks(ctx, "a", []schema.Task{{ID: "remote-1", Title: "Stale"}}); err != nil {
		t.Fatalf("WriteTasks failed: %v", err)
	}

	res, err := c.SignIn(ctx, Account{ID: "a", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.Outcome != OutcomeWarm {
		t.Errorf("Outcome = %v, want warm resume", res.Outcome)
	}

	got, err := store.Task(ctx, "local-1")
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if got.Title != local.Title || got.Description != local.Description || !got.Starred {
		t.Errorf("task changed on warm resume: %+v", got)
	}
	if ids := taskIDs(t, store); len(ids) != 1 {
		t.Errorf("task count = %d, want 1", len(ids))
	}

	user, _ := store.CurrentUser(ctx)
	if user.Email != "new@example.com" {
		t.Errorf("email = %q, want refreshed email", user.Email)
	}
	if user.Name != "Ada" {
		t.Errorf("name = %q, want cached name", user.Name)
	}
}

func TestColdImportWithUnavailableRemote(t *testing.T) {
	c, store, _, mem := setupCoordinator(t)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, Account{ID: "b", Email: "b@example.com"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := store.PutTask(ctx, schema.Task{ID: "b-1", Title: "B task"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	mem.SetOffline(true)
	res, err := c.SignIn(ctx, Account{ID: "a", Email: "a@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0", res.Tasks)
	}
	if ids := taskIDs(t, store); len(ids) != 0 {
		t.Errorf("local tasks = %v, want none", ids)
	}
	if res.User.AvatarFilePath != lastDefault {
		t.Errorf("avatar = %q, want %q", res.User.AvatarFilePath, lastDefault)
	}
	if res.User.Name != "Ada" {
		t.Errorf("name = %q, want provider name", res.User.Name)
	}
}

func TestColdImportResolvesUploadedAvatar(t *testing.T) {
	c, _, _, mem := setupCoordinator(t)
	ctx := context.Background()

	if err := mem.PutBlob(ctx, schema.AvatarPath("a"), "image/png", strings.NewReader("png")); err != nil {
		t.Fatalf("PutBlob failed: %v", err)
	}

	res, err := c.SignIn(ctx, Account{ID: "a", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if want := "memory://avatars/a"; res.User.AvatarFilePath != want {
		t.Errorf("avatar = %q, want %q", res.User.AvatarFilePath, want)
	}
}

func TestSetupFailedLeavesStateIntact(t *testing.T) {
	c, store, _, mem := setupCoordinator(t)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, Account{ID: "b", Email: "b@example.com"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := store.PutTask(ctx, schema.Task{ID: "b-1", Title: "B task"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	// A scalar where the task map should be cannot be decoded.
	if err := mem.Tree().Set(schema.TasksPath("a"), json.RawMessage(`"corrupt"`)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := c.SignIn(ctx, Account{ID: "a", Email: "a@example.com"})
	if !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("SignIn error = %v, want ErrSetupFailed", err)
	}

	if ids := taskIDs(t, store); !equalIDs(ids, []string{"b-1"}) {
		t.Errorf("local tasks = %v, want [b-1]", ids)
	}
	user, _ := store.CurrentUser(ctx)
	if user == nil || user.ID != "b" {
		t.Errorf("user = %+v, want b", user)
	}
	active, _ := c.ActiveUser(ctx)
	if active != "b" {
		t.Errorf("active = %q, want b", active)
	}
}

func TestSignUpAssignsDefaultAvatar(t *testing.T) {
	c, store, _, _ := setupCoordinator(t)
	ctx := context.Background()

	if err := store.PutTask(ctx, schema.Task{ID: "stale", Title: "Left over"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	res, err := c.SignUp(ctx, Account{ID: "n", Email: "n@example.com", Name: "Nia"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.Outcome != OutcomeNew {
		t.Errorf("Outcome = %v, want new account", res.Outcome)
	}
	if !schema.IsDefaultAvatar(res.User.AvatarFilePath) {
		t.Errorf("avatar = %q, want a default avatar", res.User.AvatarFilePath)
	}
	if ids := taskIDs(t, store); len(ids) != 0 {
		t.Errorf("local tasks = %v, want none", ids)
	}
}

func TestSignOutKeepsLastKnownUser(t *testing.T) {
	c, store, _, _ := setupCoordinator(t)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, Account{ID: "a", Email: "a@example.com"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	active, err := c.ActiveUser(ctx)
	if err != nil || active != "" {
		t.Errorf("ActiveUser = %q, %v; want empty", active, err)
	}
	user, _ := store.CurrentUser(ctx)
	if user == nil || user.ID != "a" {
		t.Errorf("user = %+v, want cached a", user)
	}
}

func TestInvalidAccount(t *testing.T) {
	c, _, _, _ := setupCoordinator(t)
	tests := []struct {
		name    string
		account Account
	}{
		{"missing id", Account{Email: "x@example.com"}},
		{"missing email", Account{ID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.SignIn(context.Background(), tt.account); !errors.Is(err, ErrSetupFailed) {
				t.Errorf("SignIn error = %v, want ErrSetupFailed", err)
			}
		})
	}
}

func TestConcurrentSignInsSerialize(t *testing.T) {
	c, store, adapter, _ := setupCoordinator(t)
	ctx := context.Background()

	for _, uid := range []string{"a", "b"} {
		tasks := []schema.Task{{ID: uid + "-1", Title: "one"}, {ID: uid + "-2", Title: "two"}}
		if err := adapter.WriteTasks(ctx, uid, tasks); err != nil {
			t.Fatalf("WriteTasks failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, uid := range []string{"a", "b", "a", "b"} {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			if _, err := c.SignIn(ctx, Account{ID: uid, Email: uid + "@example.com"}); err != nil {
				t.Errorf("SignIn(%s) failed: %v", uid, err)
			}
		}(uid)
	}
	wg.Wait()

	// Whichever import ran last, local state belongs to exactly one account.
	user, _ := store.CurrentUser(ctx)
	want := []string{user.ID + "-1", user.ID + "-2"}
	if got := taskIDs(t, store); !equalIDs(got, want) {
		t.Errorf("local tasks = %v, want %v", got, want)
	}
}
