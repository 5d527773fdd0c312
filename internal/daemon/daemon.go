package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a file must stay quiet before its change
	// is processed. This batches rapid WAL writes together
	DebounceInterval time.Duration

	// RefreshInterval is how often the store is re-read even without file
	// events. Zero disables the periodic refresh
	RefreshInterval time.Duration

	// SkipInitial drops the first snapshot of each kind instead of uploading it
	SkipInitial bool

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		RefreshInterval:  30 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon keeps the remote mirror following the local store: it uploads every
// snapshot the store publishes and notices changes made by other processes.
type Daemon struct {
	store      *db.DB
	jobs       Enqueuer
	avatarsDir string
	config     *Config

	observer *Observer
	watcher  *FileWatcher

	changeQueue   map[string]queuedChange
	changeQueueMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

type queuedChange struct {
	event    FileEvent
	queuedAt time.Time
}

// New creates a new Daemon instance.
//
// The daemon requires:
//   - store: the open local store
//   - jobs: where upload jobs go, normally a *worker.Scheduler
//   - avatarsDir: directory holding locally picked avatar files ({uid}.ext)
//
// Use Start() or Run() to begin.
func New(store *db.DB, jobs Enqueuer, avatarsDir string, config *Config) (*Daemon, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if jobs == nil {
		return nil, fmt.Errorf("jobs cannot be nil")
	}
	if avatarsDir == "" {
		return nil, fmt.Errorf("avatarsDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		store:      store,
		jobs:       jobs,
		avatarsDir: avatarsDir,
		config:     config,
		observer: NewObserver(store, jobs, &ObserverConfig{
			SkipInitial: config.SkipInitial,
			Logger:      config.Logger,
		}),
		watcher:     watcher,
		changeQueue: make(map[string]queuedChange),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start subscribes the observer, starts the file watcher and returns.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("daemon already started")
	}

	d.config.Logger.Println("Starting daemon")

	if err := d.observer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start observer: %w", err)
	}

	if err := d.watcher.Start(d.store.Path(), d.avatarsDir); err != nil {
		d.observer.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	d.config.Logger.Printf("Watching: %s, %s", filepath.Dir(d.store.Path()), d.avatarsDir)

	d.started = true
	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()
	if d.config.RefreshInterval > 0 {
		d.wg.Add(1)
		go d.refreshPeriodically()
	}
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
	case <-d.ctx.Done():
	}
	return d.Stop()
}

// Stop gracefully shuts down the daemon. Pending uploads stay with the
// scheduler.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	d.mu.Unlock()

	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	var err error
	if started {
		err = d.watcher.Stop()
		d.wg.Wait()
		d.observer.Stop()
	} else {
		err = d.watcher.watcher.Close()
	}

	d.config.Logger.Println("Daemon stopped")
	return err
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.queueChange(event)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records an event; a later event on the same path replaces it
// and restarts its debounce window.
func (d *Daemon) queueChange(event FileEvent) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[event.Path] = queuedChange{event: event, queuedAt: time.Now()}
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges handles changes that have been quiet long enough.
// Any number of database file events collapse into one Refresh.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []FileEvent
	for path, qc := range d.changeQueue {
		if now.Sub(qc.queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, qc.event)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	needsRefresh := false
	for _, event := range ready {
		switch event.Type {
		case TypeDatabase:
			needsRefresh = true
		case TypeAvatar:
			if err := d.syncAvatarFile(event); err != nil {
				d.config.Logger.Printf("Error scheduling avatar %s: %v", event.Path, err)
			}
		}
	}

	if needsRefresh {
		d.refresh()
	}
}

func (d *Daemon) refresh() {
	changed, err := d.store.Refresh(d.ctx)
	if err != nil {
		if d.ctx.Err() == nil {
			d.config.Logger.Printf("Error refreshing store: %v", err)
		}
		return
	}
	if len(changed) > 0 {
		d.config.Logger.Printf("External change detected: %v", changed)
	}
}

// syncAvatarFile enqueues an upload when the signed-in user's avatar file
// is created or rewritten.
func (d *Daemon) syncAvatarFile(event FileEvent) error {
	if event.Op == OpDelete {
		return nil
	}
	if _, err := os.Stat(event.Path); err != nil {
		// Renamed away before the debounce window closed
		return nil
	}

	userID, ok, err := d.store.Setting(d.ctx, db.SettingActiveUser)
	if err != nil {
		return err
	}
	if !ok || userID != AvatarOwner(event.Path) {
		return nil
	}

	d.config.Logger.Printf("Avatar changed: %s", event.Path)
	return d.jobs.Enqueue(worker.Key{UserID: userID, Kind: worker.KindAvatar}, worker.AvatarInput(userID, event.Path))
}

func (d *Daemon) refreshPeriodically() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.refresh()
		}
	}
}
