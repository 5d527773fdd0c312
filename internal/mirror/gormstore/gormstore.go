// Package gormstore persists the mirror document tree in SQLite through gorm.
//
// Each scalar leaf of the tree is one row keyed by its full path, so a
// subtree is a contiguous key range and reads are a single range scan.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/BodaDayo/TODO-Mobile/internal/mirror"
	"github.com/BodaDayo/TODO-Mobile/internal/mirror/tree"
)

// Node is one scalar leaf of the document tree.
type Node struct {
	Path      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// BlobRecord is one stored blob.
type BlobRecord struct {
	Path        string `gorm:"primaryKey"`
	ContentType string `gorm:"not null"`
	Data        []byte
	UpdatedAt   time.Time
}

// Store implements mirror.Store on a gorm database.
type Store struct {
	db *gorm.DB
}

var _ mirror.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at dsn and migrates it.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "mirror.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stderr, "[mirror] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&Node{}, &BlobRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get assembles the value at path from its leaf rows.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	p, err := tree.Clean(path)
	if err != nil {
		return nil, false, err
	}

	var nodes []Node
	if err := subtree(s.db.WithContext(ctx), p).Find(&nodes).Error; err != nil {
		return nil, false, fmt.Errorf("find nodes: %w", err)
	}
	leaves := make([]tree.Leaf, len(nodes))
	for i, n := range nodes {
		leaves[i] = tree.Leaf{Path: n.Path, Value: json.RawMessage(n.Value)}
	}
	return tree.Build(p, leaves)
}

// Set replaces the subtree at path.
func (s *Store) Set(ctx context.Context, path string, value json.RawMessage) error {
	p, err := tree.Clean(path)
	if err != nil {
		return err
	}
	leaves, err := tree.Flatten(p, value)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replace(tx, p, leaves)
	})
}

// Update replaces each direct child named in an object value.
func (s *Store) Update(ctx context.Context, path string, value json.RawMessage) error {
	p, err := tree.Clean(path)
	if err != nil {
		return err
	}
	children, err := tree.Children(value)
	if err != nil {
		return err
	}

	staged := make(map[string][]tree.Leaf, len(children))
	for key, child := range children {
		cp := tree.Join(p, key)
		leaves, err := tree.Flatten(cp, child)
		if err != nil {
			return err
		}
		staged[cp] = leaves
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for cp, leaves := range staged {
			if err := replace(tx, cp, leaves); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the subtree at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	p, err := tree.Clean(path)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replace(tx, p, nil)
	})
}

// PutBlob inserts or replaces the blob at path.
func (s *Store) PutBlob(ctx context.Context, path string, blob mirror.Blob) error {
	p, err := tree.Clean(path)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("%w: blob path is required", tree.ErrInvalidPath)
	}

	updated := blob.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	record := BlobRecord{
		Path:        p,
		ContentType: blob.ContentType,
		Data:        blob.Data,
		UpdatedAt:   updated,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save blob: %w", err)
	}
	return nil
}

// GetBlob returns the blob at path or mirror.ErrNotFound.
func (s *Store) GetBlob(ctx context.Context, path string) (*mirror.Blob, error) {
	p, err := tree.Clean(path)
	if err != nil {
		return nil, err
	}

	var record BlobRecord
	err = s.db.WithContext(ctx).Where("path = ?", p).First(&record).Error
	switch {
	case err == nil:
		return &mirror.Blob{
			ContentType: record.ContentType,
			Data:        record.Data,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, mirror.ErrNotFound
	default:
		return nil, fmt.Errorf("find blob: %w", err)
	}
}

// subtree scopes a query to p and every path below it.
func subtree(db *gorm.DB, p string) *gorm.DB {
	if p == "" {
		return db.Where("path >= ?", "")
	}
	lo, hi := tree.ChildRange(p)
	return db.Where("path = ? OR (path >= ? AND path < ?)", p, lo, hi)
}

func replace(tx *gorm.DB, p string, leaves []tree.Leaf) error {
	if err := subtree(tx, p).Delete(&Node{}).Error; err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	if ancestors := tree.Ancestors(p); len(ancestors) > 0 {
		if err := tx.Where("path IN ?", ancestors).Delete(&Node{}).Error; err != nil {
			return fmt.Errorf("delete ancestors: %w", err)
		}
	}
	if len(leaves) == 0 {
		return nil
	}

	now := time.Now()
	nodes := make([]Node, len(leaves))
	for i, l := range leaves {
		nodes[i] = Node{Path: l.Path, Value: string(l.Value), UpdatedAt: now}
	}
	if err := tx.CreateInBatches(nodes, 200).Error; err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}
	return nil
}

// ensureDirForSQLite creates the parent dir for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}
