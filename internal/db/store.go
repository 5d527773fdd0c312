package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// Tx is a write transaction. Every kind it touches is re-published once the
// transaction commits.
type Tx struct {
	ctx     context.Context
	tx      *sql.Tx
	touched map[schema.Kind]bool
}

// Put inserts or replaces an entity by primary key.
func (t *Tx) Put(e schema.Entity) error {
	var err error
	switch v := e.(type) {
	case schema.Task:
		err = upsertTask(t.ctx, t.tx, v)
	case *schema.Task:
		err = upsertTask(t.ctx, t.tx, *v)
	case schema.User:
		err = upsertUser(t.ctx, t.tx, v)
	case *schema.User:
		err = upsertUser(t.ctx, t.tx, *v)
	case schema.Category:
		err = upsertCategory(t.ctx, t.tx, v)
	case *schema.Category:
		err = upsertCategory(t.ctx, t.tx, *v)
	default:
		return fmt.Errorf("unsupported entity type %T", e)
	}
	if err != nil {
		return err
	}
	t.touched[e.Kind()] = true
	return nil
}

// Delete removes a row by key. Deleting an absent row is not an error.
func (t *Tx) Delete(kind schema.Kind, id string) error {
	if err := deleteRow(t.ctx, t.tx, kind, id); err != nil {
		return err
	}
	t.touched[kind] = true
	return nil
}

// Clear removes every row of a kind.
func (t *Tx) Clear(kind schema.Kind) error {
	if err := clearTable(t.ctx, t.tx, kind); err != nil {
		return err
	}
	t.touched[kind] = true
	return nil
}

// Tasks lists tasks as seen inside the transaction.
func (t *Tx) Tasks() ([]schema.Task, error) {
	return queryTasks(t.ctx, t.tx, "")
}

// CurrentUser returns the stored user as seen inside the transaction, or nil.
func (t *Tx) CurrentUser() (*schema.User, error) {
	return currentUser(t.ctx, t.tx)
}

// SetSetting writes a device-local setting.
func (t *Tx) SetSetting(key, value string) error {
	return setSetting(t.ctx, t.tx, key, value)
}

// DeleteSetting removes a device-local setting.
func (t *Tx) DeleteSetting(key string) error {
	return deleteSetting(t.ctx, t.tx, key)
}

// Update runs fn in a single write transaction. If fn returns an error the
// transaction is rolled back and nothing is published.
//
// Example:
//
//	err := store.Update(ctx, func(tx *db.Tx) error {
//	    if err := tx.Clear(schema.KindTasks); err != nil {
//	        return err
//	    }
//	    return tx.Put(task)
//	})
func (db *DB) Update(ctx context.Context, fn func(tx *Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fault("begin transaction", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{ctx: ctx, tx: sqlTx, touched: make(map[schema.Kind]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fault("commit transaction", err)
	}

	for _, kind := range schema.Kinds {
		if tx.touched[kind] {
			db.publishLocked(ctx, kind, false)
		}
	}
	return nil
}

// publishLocked re-queries kind and hands the snapshot to subscribers.
// Callers hold writeMu.
func (db *DB) publishLocked(ctx context.Context, kind schema.Kind, onlyIfChanged bool) bool {
	snap, err := snapshotOf(context.WithoutCancel(ctx), db.conn, kind)
	if err != nil {
		db.logger.Printf("Warning: failed to snapshot %s after write: %v", kind, err)
		return false
	}
	return db.feed.publish(snap, onlyIfChanged)
}

// Put inserts or replaces an entity by primary key.
func (db *DB) Put(ctx context.Context, e schema.Entity) error {
	return db.Update(ctx, func(tx *Tx) error { return tx.Put(e) })
}

// PutTask inserts or replaces a task.
func (db *DB) PutTask(ctx context.Context, t schema.Task) error {
	return db.Put(ctx, t)
}

// PutUser inserts or replaces the stored user. Fails with ErrSecondUser if a
// different account is still stored.
func (db *DB) PutUser(ctx context.Context, u schema.User) error {
	return db.Put(ctx, u)
}

// PutCategory inserts or replaces a category.
func (db *DB) PutCategory(ctx context.Context, c schema.Category) error {
	return db.Put(ctx, c)
}

// Delete removes a row by key. Returns nil if the row doesn't exist.
func (db *DB) Delete(ctx context.Context, kind schema.Kind, id string) error {
	return db.Update(ctx, func(tx *Tx) error { return tx.Delete(kind, id) })
}

// Clear removes all rows of a kind.
func (db *DB) Clear(ctx context.Context, kind schema.Kind) error {
	return db.Update(ctx, func(tx *Tx) error { return tx.Clear(kind) })
}

// Tasks returns every task in insertion order.
func (db *DB) Tasks(ctx context.Context) ([]schema.Task, error) {
	return queryTasks(ctx, db.conn, "")
}

// Task returns a single task or ErrNotFound.
func (db *DB) Task(ctx context.Context, id string) (*schema.Task, error) {
	tasks, err := queryTasks(ctx, db.conn, "WHERE taskId = ?", id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &tasks[0], nil
}

// Users returns every user row (zero or one).
func (db *DB) Users(ctx context.Context) ([]schema.User, error) {
	return queryUsers(ctx, db.conn, "")
}

// CurrentUser returns the cached account profile, or nil if none is stored.
func (db *DB) CurrentUser(ctx context.Context) (*schema.User, error) {
	return currentUser(ctx, db.conn)
}

func currentUser(ctx context.Context, q dbtx) (*schema.User, error) {
	users, err := queryUsers(ctx, q, "")
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// Categories returns every category in insertion order.
func (db *DB) Categories(ctx context.Context) ([]schema.Category, error) {
	return queryCategories(ctx, db.conn, "")
}

// Category returns a single category or ErrNotFound.
func (db *DB) Category(ctx context.Context, id string) (*schema.Category, error) {
	categories, err := queryCategories(ctx, db.conn, "WHERE categoryId = ?", id)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return &categories[0], nil
}

// Snapshot returns the current full list of one kind.
func (db *DB) Snapshot(ctx context.Context, kind schema.Kind) (Snapshot, error) {
	return snapshotOf(ctx, db.conn, kind)
}

// Counts returns the number of rows per kind.
func (db *DB) Counts(ctx context.Context) (map[schema.Kind]int, error) {
	counts := make(map[schema.Kind]int, len(schema.Kinds))
	for _, kind := range schema.Kinds {
		var n int
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+string(kind)).Scan(&n); err != nil {
			return nil, fault("count "+string(kind), err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// Watch subscribes to full-list snapshots of kind. The current snapshot is
// delivered first, then one per committed mutation of that kind.
//
// Example:
//
//	sub, err := store.Watch(ctx, schema.KindTasks)
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//	for snap := range sub.C() {
//	    render(snap.Tasks)
//	}
func (db *DB) Watch(ctx context.Context, kind schema.Kind) (*Subscription, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snap, err := snapshotOf(ctx, db.conn, kind)
	if err != nil {
		return nil, err
	}
	db.feed.prime(snap)
	return db.feed.add(kind, snap), nil
}

// Version returns the version of the last snapshot published for kind.
// Snapshots received from Watch carry the same counter.
func (db *DB) Version(kind schema.Kind) uint64 {
	return db.feed.version(kind)
}

// Refresh re-reads every kind and publishes those whose rows differ from the
// last published snapshot. It picks up writes made by another process.
func (db *DB) Refresh(ctx context.Context) ([]schema.Kind, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	var changed []schema.Kind
	for _, kind := range schema.Kinds {
		snap, err := snapshotOf(ctx, db.conn, kind)
		if err != nil {
			return changed, err
		}
		if db.feed.publish(snap, true) {
			changed = append(changed, kind)
		}
	}
	return changed, nil
}
