package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

// recorder is an Enqueuer that keeps the latest input per key.
type recorder struct {
	mu     sync.Mutex
	jobs   map[worker.Key]worker.Input
	counts map[worker.Key]int
	notify chan worker.Key
}

func newRecorder() *recorder {
	return &recorder{
		jobs:   make(map[worker.Key]worker.Input),
		counts: make(map[worker.Key]int),
		notify: make(chan worker.Key, 100),
	}
}

func (r *recorder) Enqueue(key worker.Key, in worker.Input) error {
	r.mu.Lock()
	r.jobs[key] = in.Clone()
	r.counts[key]++
	r.mu.Unlock()
	select {
	case r.notify <- key:
	default:
	}
	return nil
}

func (r *recorder) count(key worker.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *recorder) input(key worker.Key) worker.Input {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[key]
}

// waitFor blocks until key is enqueued and returns its latest input.
func (r *recorder) waitFor(t *testing.T, key worker.Key) worker.Input {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case k := <-r.notify:
			if k == key {
				return r.input(key)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", key)
			return nil
		}
	}
}

func (r *recorder) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()

	select {
	case k := <-r.notify:
		t.Fatalf("unexpected job %s", k)
	case <-time.After(wait):
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func setupStore(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "todo.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	store.SetLogger(quietLogger())
	t.Cleanup(func() { store.Close() })
	return store
}

func signIn(t *testing.T, store *db.DB, userID string) {
	t.Helper()

	ctx := context.Background()
	if err := store.PutUser(ctx, schema.User{ID: userID, Email: userID + "@example.com"}); err != nil {
		t.Fatalf("PutUser failed: %v", err)
	}
	if err := store.SetSetting(ctx, db.SettingActiveUser, userID); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
}

func TestObserverUploadsEachKind(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "u1")
	rec := newRecorder()

	obs := NewObserver(store, rec, &ObserverConfig{SkipInitial: true, Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	ctx := context.Background()
	if err := store.PutTask(ctx, schema.Task{ID: "t1", Title: "Write report"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	in := rec.waitFor(t, worker.Key{UserID: "u1", Kind: worker.KindTasks})
	if in[schema.InputUserID] != "u1" {
		t.Errorf("userId = %q, want u1", in[schema.InputUserID])
	}
	if in[schema.InputNewDataJSON] == "" || in[schema.InputNewDataJSON] == "[]" {
		t.Errorf("newDataJson = %q, want the task list", in[schema.InputNewDataJSON])
	}

	if err := store.PutCategory(ctx, schema.Category{ID: "c1", Name: "Work"}); err != nil {
		t.Fatalf("PutCategory failed: %v", err)
	}
	rec.waitFor(t, worker.Key{UserID: "u1", Kind: worker.KindCategories})

	if err := store.PutUser(ctx, schema.User{ID: "u1", Email: "u1@example.com", Name: "Ada", Occupation: "Engineer"}); err != nil {
		t.Fatalf("PutUser failed: %v", err)
	}
	in = rec.waitFor(t, worker.Key{UserID: "u1", Kind: worker.KindUserDetails})
	if in[schema.InputName] != "Ada" || in[schema.InputOccupation] != "Engineer" {
		t.Errorf("user details input = %v", in)
	}
}

func TestObserverInitialSnapshot(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "u1")
	rec := newRecorder()

	obs := NewObserver(store, rec, &ObserverConfig{Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	in := rec.waitFor(t, worker.Key{UserID: "u1", Kind: worker.KindTasks})
	if in[schema.InputNewDataJSON] != "[]" {
		t.Errorf("initial tasks payload = %q, want []", in[schema.InputNewDataJSON])
	}
}

func TestObserverIgnoresSignedOut(t *testing.T) {
	store := setupStore(t)
	rec := newRecorder()

	obs := NewObserver(store, rec, &ObserverConfig{Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	if err := store.PutTask(context.Background(), schema.Task{ID: "t1", Title: "Offline note"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	rec.expectNone(t, 200*time.Millisecond)
}

func TestObserverSync(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "u1")
	rec := newRecorder()

	obs := NewObserver(store, rec, &ObserverConfig{SkipInitial: true, Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		task := schema.Task{ID: schema.NewID(), Title: "bulk"}
		if err := store.PutTask(ctx, task); err != nil {
			t.Fatalf("PutTask failed: %v", err)
		}
	}

	syncCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := obs.Sync(syncCtx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// After Sync the enqueued payload is the latest snapshot.
	in := rec.input(worker.Key{UserID: "u1", Kind: worker.KindTasks})
	var tasks []schema.Task
	if err := json.Unmarshal([]byte(in[schema.InputNewDataJSON]), &tasks); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(tasks) != 5 {
		t.Errorf("payload has %d tasks, want 5", len(tasks))
	}
}

func TestObserverKeepsWriteRightAfterStart(t *testing.T) {
	// The write races the forwarding goroutine's first receive, so repeat.
	for i := 0; i < 20; i++ {
		store := setupStore(t)
		signIn(t, store, "u1")
		rec := newRecorder()

		obs := NewObserver(store, rec, &ObserverConfig{SkipInitial: true, Logger: quietLogger()})
		if err := obs.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		ctx := context.Background()
		if err := store.PutTask(ctx, schema.Task{ID: "t1", Title: "Buy milk"}); err != nil {
			t.Fatalf("PutTask failed: %v", err)
		}
		syncCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := obs.Sync(syncCtx)
		cancel()
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		key := worker.Key{UserID: "u1", Kind: worker.KindTasks}
		if n := rec.count(key); n != 1 {
			t.Fatalf("run %d: tasks enqueued %d times, want 1", i, n)
		}
		obs.Stop()
	}
}

// gatedEnqueuer holds the first tasks enqueue until release is closed.
type gatedEnqueuer struct {
	*recorder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEnqueuer) Enqueue(key worker.Key, in worker.Input) error {
	if key.Kind == worker.KindTasks {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.recorder.Enqueue(key, in)
}

func TestObserverUploadsToPublishingAccount(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "b")
	rec := &gatedEnqueuer{
		recorder: newRecorder(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}

	obs := NewObserver(store, rec, &ObserverConfig{Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	select {
	case <-rec.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("initial tasks snapshot never reached the scheduler")
	}

	// b's edit is pending behind the held enqueue when account a takes over.
	ctx := context.Background()
	if err := store.PutTask(ctx, schema.Task{ID: "b1", Title: "B's task"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	err := store.Update(ctx, func(tx *db.Tx) error {
		if err := tx.Clear(schema.KindUsers); err != nil {
			return err
		}
		if err := tx.Put(schema.User{ID: "a", Email: "a@example.com"}); err != nil {
			return err
		}
		return tx.SetSetting(db.SettingActiveUser, "a")
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	close(rec.release)

	syncCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := obs.Sync(syncCtx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if n := rec.count(worker.Key{UserID: "a", Kind: worker.KindTasks}); n != 0 {
		t.Errorf("b's tasks were enqueued under account a %d times", n)
	}
	in := rec.input(worker.Key{UserID: "b", Kind: worker.KindTasks})
	var tasks []schema.Task
	if err := json.Unmarshal([]byte(in[schema.InputNewDataJSON]), &tasks); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "b1" {
		t.Errorf("b's payload = %s, want b1", in[schema.InputNewDataJSON])
	}
}

func TestObserverStartTwice(t *testing.T) {
	store := setupStore(t)
	obs := NewObserver(store, newRecorder(), &ObserverConfig{Logger: quietLogger()})
	if err := obs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer obs.Stop()

	if err := obs.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	store := setupStore(t)
	tests := []struct {
		name       string
		store      *db.DB
		jobs       Enqueuer
		avatarsDir string
	}{
		{"nil store", nil, newRecorder(), "avatars"},
		{"nil jobs", store, nil, "avatars"},
		{"empty avatars dir", store, newRecorder(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.store, tt.jobs, tt.avatarsDir, nil); err == nil {
				t.Error("New should fail")
			}
		})
	}
}

func newTestDaemon(t *testing.T, store *db.DB, rec *recorder) (*Daemon, string) {
	t.Helper()

	avatarsDir := filepath.Join(filepath.Dir(store.Path()), "avatars")
	d, err := New(store, rec, avatarsDir, &Config{
		DebounceInterval: 20 * time.Millisecond,
		SkipInitial:      true,
		Logger:           quietLogger(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d, avatarsDir
}

func TestDaemonPicksUpExternalWrites(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "u1")
	rec := newRecorder()
	newTestDaemon(t, store, rec)

	// A second handle stands in for another process writing the same file.
	other, err := db.Open(store.Path())
	if err != nil {
		t.Fatalf("failed to open second handle: %v", err)
	}
	other.SetLogger(quietLogger())
	defer other.Close()

	if err := other.PutTask(context.Background(), schema.Task{ID: "t1", Title: "From CLI"}); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	in := rec.waitFor(t, worker.Key{UserID: "u1", Kind: worker.KindTasks})
	if in[schema.InputNewDataJSON] == "[]" {
		t.Error("expected the externally written task in the payload")
	}
}

func TestDaemonUploadsChangedAvatar(t *testing.T) {
	store := setupStore(t)
	signIn(t, store, "u1")
	rec := newRecorder()
	_, avatarsDir := newTestDaemon(t, store, rec)

	// Files for other users are ignored.
	if err := os.WriteFile(filepath.Join(avatarsDir, "someone-else.png"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	avatar := filepath.Join(avatarsDir, "u1.png")
	if err := os.WriteFile(avatar, []byte("\x89PNG"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	key := worker.Key{UserID: "u1", Kind: worker.KindAvatar}
	in := rec.waitFor(t, key)
	if got := in[schema.InputAvatarFilePath]; filepath.Base(got) != "u1.png" {
		t.Errorf("avatarFilePath = %q, want .../u1.png", got)
	}
	if n := rec.count(worker.Key{UserID: "someone-else", Kind: worker.KindAvatar}); n != 0 {
		t.Errorf("other user's avatar enqueued %d times", n)
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	store := setupStore(t)
	d, _ := newTestDaemon(t, store, newRecorder())

	if err := d.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestDaemonRunReturnsOnCancel(t *testing.T) {
	store := setupStore(t)
	avatarsDir := filepath.Join(t.TempDir(), "avatars")
	d, err := New(store, newRecorder(), avatarsDir, &Config{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
