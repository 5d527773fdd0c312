package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

// Enqueuer accepts upload jobs. *worker.Scheduler implements it.
type Enqueuer interface {
	Enqueue(key worker.Key, in worker.Input) error
}

// ObserverConfig holds observer configuration.
type ObserverConfig struct {
	// SkipInitial drops the snapshot each subscription delivers on start, so
	// only mutations made after Start are uploaded
	SkipInitial bool

	// Logger for observer activity
	Logger *log.Logger
}

// Observer forwards every local snapshot to the upload scheduler.
type Observer struct {
	store  *db.DB
	jobs   Enqueuer
	config ObserverConfig
	logger *log.Logger

	mu       sync.Mutex
	subs     []*db.Subscription
	running  bool
	handled  map[schema.Kind]uint64
	progress chan struct{}
	wg       sync.WaitGroup
}

// NewObserver creates an observer. Start subscribes.
func NewObserver(store *db.DB, jobs Enqueuer, config *ObserverConfig) *Observer {
	cfg := ObserverConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[observer] ", log.LstdFlags)
	}
	return &Observer{
		store:    store,
		jobs:     jobs,
		config:   cfg,
		logger:   cfg.Logger,
		handled:  make(map[schema.Kind]uint64),
		progress: make(chan struct{}),
	}
}

// Start opens one subscription per kind. Handlers for one kind run
// sequentially in subscription order.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("observer already running")
	}

	for _, kind := range schema.Kinds {
		sub, err := o.store.Watch(ctx, kind)
		if err != nil {
			for _, s := range o.subs {
				s.Close()
			}
			o.subs = nil
			return fmt.Errorf("failed to watch %s: %w", kind, err)
		}
		o.subs = append(o.subs, sub)
	}

	o.running = true
	for _, sub := range o.subs {
		o.wg.Add(1)
		go o.forward(sub)
	}
	return nil
}

// Stop closes every subscription and waits for in-progress handlers.
func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	subs := o.subs
	o.subs = nil
	o.markLocked()
	o.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	o.wg.Wait()
}

func (o *Observer) forward(sub *db.Subscription) {
	defer o.wg.Done()

	initial := sub.InitialVersion()
	for snap := range sub.C() {
		// A mutation may already have replaced the initial snapshot in the
		// channel, so skip by version rather than by position.
		if !o.config.SkipInitial || snap.Version > initial {
			if err := o.handle(snap); err != nil {
				o.logger.Printf("Warning: failed to schedule %s upload: %v", snap.Kind, err)
			}
		}
		o.markHandled(snap.Kind, snap.Version)
	}
}

func (o *Observer) markHandled(kind schema.Kind, version uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if version > o.handled[kind] {
		o.handled[kind] = version
	}
	o.markLocked()
}

// markLocked wakes Sync callers. Callers hold mu.
func (o *Observer) markLocked() {
	close(o.progress)
	o.progress = make(chan struct{})
}

// Sync blocks until every snapshot the store has published so far has been
// handed to the scheduler, the observer stops, or ctx is done.
func (o *Observer) Sync(ctx context.Context) error {
	for {
		o.mu.Lock()
		if !o.running {
			o.mu.Unlock()
			return nil
		}
		caughtUp := true
		for _, kind := range schema.Kinds {
			if o.handled[kind] < o.store.Version(kind) {
				caughtUp = false
				break
			}
		}
		progress := o.progress
		o.mu.Unlock()

		if caughtUp {
			return nil
		}
		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle enqueues snap for the account that was signed in when it was
// published. The current setting may already name a later account.
func (o *Observer) handle(snap db.Snapshot) error {
	userID := snap.Owner
	if userID == "" {
		return nil
	}

	switch snap.Kind {
	case schema.KindTasks:
		in, err := worker.TasksInput(userID, snap.Tasks)
		if err != nil {
			return err
		}
		return o.jobs.Enqueue(worker.Key{UserID: userID, Kind: worker.KindTasks}, in)

	case schema.KindCategories:
		in, err := worker.CategoriesInput(userID, snap.Categories)
		if err != nil {
			return err
		}
		return o.jobs.Enqueue(worker.Key{UserID: userID, Kind: worker.KindCategories}, in)

	case schema.KindUsers:
		for _, u := range snap.Users {
			if u.ID == userID {
				return o.jobs.Enqueue(worker.Key{UserID: userID, Kind: worker.KindUserDetails}, worker.UserDetailsInput(u))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown snapshot kind %q", snap.Kind)
}
