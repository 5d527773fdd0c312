package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFileWatcher_StartStop verifies that the watcher can start and stop cleanly.
func TestFileWatcher_StartStop(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}

	if err := fw.Start(filepath.Join(tmpDir, "todo.db"), filepath.Join(tmpDir, "avatars")); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "avatars")); err != nil {
		t.Errorf("avatars directory not created: %v", err)
	}

	if err := fw.Start(filepath.Join(tmpDir, "todo.db"), filepath.Join(tmpDir, "avatars")); err == nil {
		t.Error("Second Start() should fail")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

// TestFileWatcher_Classification verifies which files produce events.
func TestFileWatcher_Classification(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "todo.db")
	avatarsDir := filepath.Join(tmpDir, "avatars")

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(dbPath, avatarsDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer fw.Stop()

	// Unrelated files in the data directory are ignored.
	writeFile(t, filepath.Join(tmpDir, "notes.txt"))
	writeFile(t, filepath.Join(avatarsDir, ".u1.png.tmp"))
	writeFile(t, dbPath+"-wal")

	ev := waitEvent(t, fw)
	if ev.Type != TypeDatabase {
		t.Errorf("Type = %v, want database", ev.Type)
	}
	if filepath.Base(ev.Path) != "todo.db-wal" {
		t.Errorf("Path = %s, want todo.db-wal", ev.Path)
	}
	drain(fw)

	writeFile(t, filepath.Join(avatarsDir, "u1.jpg"))
	ev = waitEvent(t, fw)
	if ev.Type != TypeAvatar {
		t.Errorf("Type = %v, want avatar", ev.Type)
	}
	if ev.Op != OpCreate && ev.Op != OpModify {
		t.Errorf("Op = %v, want create or modify", ev.Op)
	}
}

func TestAvatarOwner(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/avatars/u1.png", "u1"},
		{"/data/avatars/abc.def.jpg", "abc.def"},
		{"u2", "u2"},
	}
	for _, tt := range tests {
		if got := AvatarOwner(tt.path); got != tt.want {
			t.Errorf("AvatarOwner(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEventStrings(t *testing.T) {
	if OpCreate.String() != "create" || OpModify.String() != "modify" || OpDelete.String() != "delete" {
		t.Error("unexpected EventOp strings")
	}
	if TypeDatabase.String() != "database" || TypeAvatar.String() != "avatar" {
		t.Error("unexpected FileType strings")
	}
	if EventOp(99).String() != "unknown" || FileType(99).String() != "unknown" {
		t.Error("out-of-range values should print unknown")
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func waitEvent(t *testing.T, fw *FileWatcher) FileEvent {
	t.Helper()
	select {
	case ev := <-fw.Events():
		return ev
	case err := <-fw.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return FileEvent{}
}

// drain discards events already queued, such as the Create+Write pair
// WriteFile produces.
func drain(fw *FileWatcher) {
	for {
		select {
		case <-fw.Events():
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}
