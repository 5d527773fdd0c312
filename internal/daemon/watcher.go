package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileType classifies the file an event refers to.
type FileType int

const (
	// TypeDatabase is the SQLite file or one of its -wal / -shm companions.
	TypeDatabase FileType = iota
	// TypeAvatar is a file directly inside the avatars directory.
	TypeAvatar
)

// String returns a human-readable representation of the file type.
func (ft FileType) String() string {
	switch ft {
	case TypeDatabase:
		return "database"
	case TypeAvatar:
		return "avatar"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event for a watched file.
type FileEvent struct {
	// Path is the absolute path to the file that changed.
	Path string
	// Type says whether this is a database or avatar file.
	Type FileType
	// Op is the operation that occurred (create, modify, delete).
	Op EventOp
}

// FileWatcher watches the database directory and the avatars directory.
// It uses fsnotify for cross-platform file system event monitoring.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	events     chan FileEvent
	errors     chan error
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	dbPath     string
	avatarsDir string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching dbPath's directory and avatarsDir. The avatars
// directory is created if missing.
func (fw *FileWatcher) Start(dbPath, avatarsDir string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	absDB, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("failed to resolve database path %s: %w", dbPath, err)
	}
	absAvatars, err := filepath.Abs(avatarsDir)
	if err != nil {
		return fmt.Errorf("failed to resolve avatars directory %s: %w", avatarsDir, err)
	}
	if err := os.MkdirAll(absAvatars, 0755); err != nil {
		return fmt.Errorf("failed to create avatars directory %s: %w", absAvatars, err)
	}

	fw.dbPath = absDB
	fw.avatarsDir = absAvatars

	dbDir := filepath.Dir(absDB)
	if err := fw.watcher.Add(dbDir); err != nil {
		return fmt.Errorf("failed to watch database directory %s: %w", dbDir, err)
	}

	if absAvatars != dbDir {
		if err := fw.watcher.Add(absAvatars); err != nil {
			// Clean up database watch if avatars watch fails
			fw.watcher.Remove(dbDir)
			return fmt.Errorf("failed to watch avatars directory %s: %w", absAvatars, err)
		}
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	// Closing the underlying watcher unblocks the event loop
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if fileEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- fileEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to a FileEvent.
// Returns (FileEvent{}, false) for events on unrelated files and for chmod.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	fileType, ok := fw.determineFileType(event.Name)
	if !ok {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// Treat rename as delete (the new name will trigger a create)
		op = OpDelete
	default:
		return FileEvent{}, false
	}

	return FileEvent{
		Path: event.Name,
		Type: fileType,
		Op:   op,
	}, true
}

func (fw *FileWatcher) determineFileType(path string) (FileType, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, false
	}

	switch absPath {
	case fw.dbPath, fw.dbPath + "-wal", fw.dbPath + "-shm":
		return TypeDatabase, true
	}

	base := filepath.Base(absPath)
	if filepath.Dir(absPath) == fw.avatarsDir && !strings.HasPrefix(base, ".") {
		return TypeAvatar, true
	}

	return 0, false
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// AvatarOwner returns the user id an avatar file belongs to: the file name
// without its extension.
func AvatarOwner(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
