// Package app is the façade a user interface talks to. Every operation
// writes the local store synchronously and leaves uploading to the change
// observer and the background scheduler.
//
// Operations return an error and, when given one, also report the outcome
// through a completion callback:
//
//	err := a.SaveTask(ctx, schema.NewTask("Buy milk", ""), func(ok bool) {
//	    if !ok {
//	        showToast("Could not save task")
//	    }
//	})
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/session"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

var (
	// ErrNotSignedIn is returned by account operations while signed out.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrUndoExpired means the task was not deleted recently enough to restore.
	ErrUndoExpired = errors.New("nothing to undo")
)

// Done receives the outcome of an operation.
type Done func(ok bool)

// DoneMsg receives the outcome of an operation plus a message for the user.
type DoneMsg func(ok bool, msg string)

// Jobs is the part of the upload scheduler the façade uses.
type Jobs interface {
	Enqueue(key worker.Key, in worker.Input) error
	CancelAll() int
}

// Config holds façade configuration.
type Config struct {
	// UndoWindow is how long a deleted task can be restored
	UndoWindow time.Duration

	// Connectivity, when set, lets ChangeUserAvatar warn that the upload is
	// waiting for the network
	Connectivity worker.Connectivity

	// Logger for façade activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		UndoWindow: 5 * time.Second,
		Logger:     log.New(os.Stderr, "[app] ", log.LstdFlags),
	}
}

// App wires the local store, the session coordinator and the scheduler.
type App struct {
	store      *db.DB
	session    *session.Coordinator
	jobs       Jobs
	avatarsDir string
	config     *Config
	logger     *log.Logger

	trashMu sync.Mutex
	trash   map[string]*trashed
}

// New creates the façade. avatarsDir is where picked avatar images are copied.
func New(store *db.DB, sess *session.Coordinator, jobs Jobs, avatarsDir string, config *Config) *App {
	if config == nil {
		config = DefaultConfig()
	}
	if config.UndoWindow <= 0 {
		config.UndoWindow = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[app] ", log.LstdFlags)
	}
	return &App{
		store:      store,
		session:    sess,
		jobs:       jobs,
		avatarsDir: avatarsDir,
		config:     config,
		logger:     config.Logger,
		trash:      make(map[string]*trashed),
	}
}

// Store returns the local store.
func (a *App) Store() *db.DB {
	return a.store
}

// activeUser returns the signed-in account id or ErrNotSignedIn.
func (a *App) activeUser(ctx context.Context) (string, error) {
	id, ok, err := a.store.Setting(ctx, db.SettingActiveUser)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", ErrNotSignedIn
	}
	return id, nil
}

func report(done Done, err error) error {
	if done != nil {
		done(err == nil)
	}
	return err
}

func reportMsg(done DoneMsg, err error, okMsg string) error {
	if done != nil {
		if err != nil {
			done(false, err.Error())
		} else {
			done(true, okMsg)
		}
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
