// Package session decides what happens to the local cache when an account
// signs in on this device.
//
// A sign-in as the account already cached is a warm resume: only the user
// row is rebuilt and tasks stay as they are. Any other sign-in is a cold
// import: the cached user and tasks are replaced with a one-shot fetch from
// the remote. Both run inside a single store transaction under one lock, so
// a concurrent sign-out or second sign-in never interleaves with the purge.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/remote"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// ErrSetupFailed wraps every failure of a sign-in or sign-up import.
var ErrSetupFailed = errors.New("account setup failed")

// Account is what the authentication provider reports for a signed-in user.
type Account struct {
	ID    string
	Email string
	// Name is the display name, if the provider has one.
	Name string
}

// Outcome says which path a sign-in took.
type Outcome int

const (
	// OutcomeCold means local user and tasks were replaced from the remote.
	OutcomeCold Outcome = iota
	// OutcomeWarm means the cached account was resumed and tasks kept.
	OutcomeWarm
	// OutcomeNew means a brand new account was set up with empty state.
	OutcomeNew
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCold:
		return "cold import"
	case OutcomeWarm:
		return "warm resume"
	case OutcomeNew:
		return "new account"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a completed sign-in.
type Result struct {
	User    schema.User
	Outcome Outcome
	// Tasks is the number of tasks imported. Zero on warm resume.
	Tasks int
}

// Config holds coordinator configuration.
type Config struct {
	// Intn picks a default avatar index in [0, n). Defaults to math/rand.
	Intn func(n int) int

	// Logger for session activity
	Logger *log.Logger
}

// Coordinator runs sign-in imports against the local store.
type Coordinator struct {
	store  *db.DB
	remote remote.Adapter
	intn   func(n int) int
	logger *log.Logger

	// mu is held for the whole of every import and sign-out.
	mu sync.Mutex
}

// New creates a coordinator.
func New(store *db.DB, adapter remote.Adapter, config *Config) *Coordinator {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.IntN
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Coordinator{
		store:  store,
		remote: adapter,
		intn:   cfg.Intn,
		logger: cfg.Logger,
	}
}

// SignIn imports state for an account that already exists remotely.
//
// If the cached user is the same account, the user row is rebuilt from the
// cache and the fresh email, and tasks are left untouched. Otherwise every
// cached user and task row is replaced by what the remote holds; missing or
// unreachable remote data imports as empty.
func (c *Coordinator) SignIn(ctx context.Context, account Account) (*Result, error) {
	if err := validate(account); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, err := c.store.CurrentUser(ctx)
	if err != nil {
		return nil, setupFailed("read cached user", err)
	}

	if cached != nil && cached.ID == account.ID {
		return c.warmResume(ctx, account, *cached)
	}
	return c.coldImport(ctx, account)
}

// SignUp sets up a brand new account: any cached state is purged and the
// user gets a random default avatar.
func (c *Coordinator) SignUp(ctx context.Context, account Account) (*Result, error) {
	if err := validate(account); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	user := schema.User{
		ID:             account.ID,
		Name:           account.Name,
		Email:          account.Email,
		AvatarFilePath: schema.PickDefaultAvatar(c.intn),
	}

	if err := c.replace(ctx, user, nil, true); err != nil {
		return nil, err
	}

	c.logger.Printf("Set up new account %s", account.ID)
	return &Result{User: user, Outcome: OutcomeNew}, nil
}

// SignOut marks the device as signed out. The user row stays as the
// last-known account, so signing back in as the same account is a warm
// resume.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteSetting(ctx, db.SettingActiveUser); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	c.logger.Println("Signed out")
	return nil
}

// ActiveUser returns the signed-in account id, or "" while signed out.
func (c *Coordinator) ActiveUser(ctx context.Context) (string, error) {
	id, _, err := c.store.Setting(ctx, db.SettingActiveUser)
	return id, err
}

func (c *Coordinator) warmResume(ctx context.Context, account Account, cached schema.User) (*Result, error) {
	user := cached
	user.Email = account.Email
	if user.Name == "" {
		user.Name = account.Name
	}
	if user.AvatarFilePath == "" {
		user.AvatarFilePath = schema.PickDefaultAvatar(c.intn)
	}

	if err := c.replace(ctx, user, nil, false); err != nil {
		return nil, err
	}

	c.logger.Printf("Resumed account %s", account.ID)
	return &Result{User: user, Outcome: OutcomeWarm}, nil
}

func (c *Coordinator) coldImport(ctx context.Context, account Account) (*Result, error) {
	var (
		details *schema.UserDetails
		tasks   []schema.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := c.remote.ReadUserDetailsOnce(gctx, account.ID)
		if err != nil {
			if errors.Is(err, remote.ErrRemoteUnavailable) {
				c.logger.Printf("No remote profile for %s: %v", account.ID, err)
				return nil
			}
			return fmt.Errorf("failed to read user details: %w", err)
		}
		details = d
		return nil
	})
	g.Go(func() error {
		t, err := c.remote.ReadTasksOnce(gctx, account.ID)
		if err != nil {
			if errors.Is(err, remote.ErrRemoteUnavailable) {
				c.logger.Printf("No remote tasks for %s: %v", account.ID, err)
				return nil
			}
			return fmt.Errorf("failed to read tasks: %w", err)
		}
		tasks = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, setupFailed("fetch remote state", err)
	}

	user := schema.User{ID: account.ID, Name: account.Name, Email: account.Email}
	if details != nil {
		if details.Name != "" {
			user.Name = details.Name
		}
		user.Occupation = details.Occupation
	}
	user.AvatarFilePath = c.resolveAvatar(ctx, account.ID, details)

	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, setupFailed("import task "+t.ID, err)
		}
	}

	if err := c.replace(ctx, user, tasks, true); err != nil {
		return nil, err
	}

	c.logger.Printf("Imported account %s: %d tasks", account.ID, len(tasks))
	return &Result{User: user, Outcome: OutcomeCold, Tasks: len(tasks)}, nil
}

// resolveAvatar keeps a default avatar the remote names, else uses the
// uploaded image's download URL, else picks a random default.
func (c *Coordinator) resolveAvatar(ctx context.Context, userID string, details *schema.UserDetails) string {
	if details != nil && schema.IsDefaultAvatar(details.AvatarFilePath) {
		return details.AvatarFilePath
	}

	url, err := c.remote.ResolveAvatarDownloadURL(ctx, userID)
	if err == nil && url != "" {
		return url
	}
	if err != nil && !errors.Is(err, remote.ErrRemoteUnavailable) {
		c.logger.Printf("Warning: failed to resolve avatar for %s: %v", userID, err)
	}
	return schema.PickDefaultAvatar(c.intn)
}

// replace swaps the user row, optionally replaces all tasks, and marks the
// account active, all in one transaction.
func (c *Coordinator) replace(ctx context.Context, user schema.User, tasks []schema.Task, purgeTasks bool) error {
	err := c.store.Update(ctx, func(tx *db.Tx) error {
		if err := tx.Clear(schema.KindUsers); err != nil {
			return err
		}
		if purgeTasks {
			if err := tx.Clear(schema.KindTasks); err != nil {
				return err
			}
			for _, t := range tasks {
				if err := tx.Put(t); err != nil {
					return err
				}
			}
		}
		if err := tx.Put(user); err != nil {
			return err
		}
		return tx.SetSetting(db.SettingActiveUser, user.ID)
	})
	if err != nil {
		return setupFailed("write local state", err)
	}
	return nil
}

func validate(account Account) error {
	if account.ID == "" {
		return setupFailed("validate account", fmt.Errorf("account id is required"))
	}
	if account.Email == "" {
		return setupFailed("validate account", fmt.Errorf("account email is required"))
	}
	return nil
}

func setupFailed(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrSetupFailed, err)
}
