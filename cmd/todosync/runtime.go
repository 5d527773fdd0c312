package main

import (
	"context"
	"fmt"
	"io"

	"github.com/BodaDayo/TODO-Mobile/internal/app"
	"github.com/BodaDayo/TODO-Mobile/internal/config"
	"github.com/BodaDayo/TODO-Mobile/internal/daemon"
	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/logging"
	"github.com/BodaDayo/TODO-Mobile/internal/netmon"
	"github.com/BodaDayo/TODO-Mobile/internal/remote"
	"github.com/BodaDayo/TODO-Mobile/internal/session"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

// runtime is every component a command may need, wired together.
type runtime struct {
	cfg       *config.Config
	logs      *logging.Factory
	store     *db.DB
	remote    remote.Adapter
	closer    io.Closer
	monitor   *netmon.Monitor
	scheduler *worker.Scheduler
	session   *session.Coordinator
	app       *app.App
	observer  *daemon.Observer
}

// openRuntime opens the store and builds the sync stack. With observe set,
// local changes made from now on are uploaded; the process should call
// close to give them a chance to land.
func openRuntime(ctx context.Context, cfg *config.Config, observe bool) (*runtime, error) {
	logs, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	rt := &runtime{cfg: cfg, logs: logs}

	store, err := db.Open(cfg.DBPath())
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	store.SetLogger(logs.Logger("store"))
	rt.store = store
	if err := store.InitSchemaContext(ctx); err != nil {
		rt.close(ctx)
		return nil, err
	}

	adapter, closer, err := newAdapter(ctx, cfg)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.remote = adapter
	rt.closer = closer

	var prober remote.Prober
	if p, ok := adapter.(remote.Prober); ok {
		prober = p
	}
	rt.monitor = netmon.New(prober, &netmon.Config{
		ProbeInterval: cfg.Netmon.ProbeInterval,
		ProbeTimeout:  cfg.Remote.Timeout,
		Logger:        logs.Logger("netmon"),
	})

	rt.scheduler, err = worker.New(worker.UploadHandlers(adapter), &worker.Config{
		Workers:        cfg.Worker.Workers,
		MaxAttempts:    cfg.Worker.MaxAttempts,
		InitialBackoff: cfg.Worker.InitialBackoff,
		MaxBackoff:     cfg.Worker.MaxBackoff,
		JobTimeout:     cfg.Remote.Timeout,
		Connectivity:   rt.monitor,
		Logger:         logs.Logger("worker"),
	})
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	rt.session = session.New(store, adapter, &session.Config{Logger: logs.Logger("session")})
	rt.app = app.New(store, rt.session, rt.scheduler, cfg.AvatarsDir(), &app.Config{
		Connectivity: rt.monitor,
		Logger:       logs.Logger("app"),
	})

	if observe {
		if err := rt.startSync(ctx); err != nil {
			rt.close(ctx)
			return nil, err
		}
	}
	return rt, nil
}

// startSync starts probing, the worker pool and the snapshot observer. The
// snapshots present at start are not uploaded; only what this command
// changes is.
func (rt *runtime) startSync(ctx context.Context) error {
	if err := rt.monitor.Start(); err != nil {
		return err
	}
	rt.scheduler.Start()
	rt.observer = daemon.NewObserver(rt.store, rt.scheduler, &daemon.ObserverConfig{
		SkipInitial: true,
		Logger:      rt.logs.Logger("observer"),
	})
	return rt.observer.Start(ctx)
}

// flush waits for scheduled uploads up to the drain timeout. It returns the
// number of uploads still pending.
func (rt *runtime) flush(ctx context.Context) int {
	if rt.scheduler == nil {
		return 0
	}
	drainCtx, cancel := context.WithTimeout(ctx, rt.cfg.Worker.DrainTimeout)
	defer cancel()
	if rt.observer != nil {
		if err := rt.observer.Sync(drainCtx); err != nil {
			return rt.scheduler.Len()
		}
	}
	if err := rt.scheduler.Drain(drainCtx); err != nil {
		return rt.scheduler.Len()
	}
	return 0
}

// close flushes uploads and releases everything in reverse order.
func (rt *runtime) close(ctx context.Context) {
	if rt.observer != nil {
		if pending := rt.flush(ctx); pending > 0 {
			fmt.Printf("%s %d upload(s) still pending; they will be retried by 'todosync daemon'\n", renderWarn("!"), pending)
		}
		rt.observer.Stop()
	}
	if rt.scheduler != nil {
		rt.scheduler.Stop()
	}
	if rt.monitor != nil {
		rt.monitor.Stop()
	}
	if rt.closer != nil {
		rt.closer.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	rt.logs.Close()
}

func newAdapter(ctx context.Context, cfg *config.Config) (remote.Adapter, io.Closer, error) {
	switch cfg.Remote.Backend {
	case config.BackendMirror:
		store, err := remote.NewHTTPStore(cfg.Remote.URL, cfg.Remote.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return remote.NewTreeAdapter(store), nil, nil
	case config.BackendFirestore:
		fs, err := remote.NewFirestore(ctx, cfg.Remote.FirestoreProject)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	case config.BackendMemory:
		adapter, _ := remote.NewMemoryAdapter()
		return adapter, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
}

// withRuntime runs fn against a runtime that uploads what fn changes.
func withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	rt, err := openRuntime(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	return fn(rt)
}
