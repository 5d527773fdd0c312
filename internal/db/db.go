// Package db provides the local store: durable SQLite tables for tasks, the
// signed-in user and categories, plus a change feed that re-emits the full
// table on every mutation.
//
// The database runs through the ncruces/go-sqlite3 driver in WAL mode so the
// feed's re-queries never block on an open writer from another process.
//
// Workflow:
//  1. Callers mutate through Put/Delete/Clear or a multi-statement Update.
//  2. Every mutation commits, then each touched kind is re-queried.
//  3. The fresh snapshot is published to every Watch subscription of that kind.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection and the change feed.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger

	// writeMu serializes writers. It is held across commit and publish so
	// snapshots leave in the same order the writes landed.
	writeMu sync.Mutex
	feed    *feed
}

// Open creates a new database connection at the specified path.
//
// If the database doesn't exist, it is created. Call InitSchema before use.
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(filepath.Join(dataDir, "todo.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	path = strings.TrimPrefix(path, "file:")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fault("create database directory", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them, not only
	// the first one.
	connStr := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=journal_mode(wal)"+
		"&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fault("open database", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fault("ping database", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn:   conn,
		path:   path,
		logger: log.New(os.Stderr, "[store] ", log.LstdFlags),
		feed:   newFeed(),
	}, nil
}

// SetLogger replaces the default stderr logger.
func (db *DB) SetLogger(l *log.Logger) {
	if l != nil {
		db.logger = l
	}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes every subscription and the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	db.feed.closeAll()

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fault("close database", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		taskId TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		taskCompleted INTEGER NOT NULL DEFAULT 0,
		starred INTEGER NOT NULL DEFAULT 0,
		dueDateTime INTEGER,           -- epoch millis
		categoryIds TEXT NOT NULL DEFAULT ''  -- comma-joined
	);

	CREATE TABLE IF NOT EXISTS users (
		userId TEXT PRIMARY KEY,
		name TEXT,
		email TEXT NOT NULL,
		occupation TEXT,
		avatarFilePath TEXT
	);

	CREATE TABLE IF NOT EXISTS categories (
		categoryId TEXT PRIMARY KEY,
		categoryName TEXT NOT NULL,
		categoryIconIdentifier TEXT NOT NULL,
		categoryColorIdentifier TEXT NOT NULL
	);

	-- Session bookkeeping that never leaves the device
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fault("initialize schema", err)
	}

	return nil
}
