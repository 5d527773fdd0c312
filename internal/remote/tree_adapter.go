package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// Store is a remote JSON document tree with blob storage. Get fails with an
// UnavailableError when nothing is stored at path or the store cannot be
// reached.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value json.RawMessage) error
	PutBlob(ctx context.Context, path, contentType string, body io.Reader) error
	BlobURL(ctx context.Context, path string) (string, error)
}

// TreeAdapter implements Adapter on top of a Store.
type TreeAdapter struct {
	store Store
}

// NewTreeAdapter creates an adapter writing to store.
func NewTreeAdapter(store Store) *TreeAdapter {
	return &TreeAdapter{store: store}
}

// WriteTasks replaces the account's task map, keyed by task id.
func (a *TreeAdapter) WriteTasks(ctx context.Context, userID string, tasks []schema.Task) error {
	records := make(map[string]schema.TaskRecord, len(tasks))
	for _, t := range tasks {
		records[t.ID] = t.Record()
	}
	return a.set(ctx, "write tasks", schema.TasksPath(userID), records)
}

// WriteUserDetails replaces the account's profile details.
func (a *TreeAdapter) WriteUserDetails(ctx context.Context, userID string, details schema.UserDetails) error {
	return a.set(ctx, "write user details", schema.UserDetailsPath(userID), details)
}

// WriteCategories replaces the account's category list.
func (a *TreeAdapter) WriteCategories(ctx context.Context, userID string, categories []schema.Category) error {
	if categories == nil {
		categories = []schema.Category{}
	}
	return a.set(ctx, "write categories", schema.CategoriesPath(userID), categories)
}

// WriteAvatar uploads the image file. Built-in default avatars have no file
// and are not uploaded.
func (a *TreeAdapter) WriteAvatar(ctx context.Context, userID, localFilePath string) error {
	if localFilePath == "" || schema.IsDefaultAvatar(localFilePath) {
		return nil
	}

	f, err := os.Open(localFilePath)
	if err != nil {
		return invalidInput("open avatar", err)
	}
	defer f.Close()

	if err := a.store.PutBlob(ctx, schema.AvatarPath(userID), contentTypeFor(localFilePath), f); err != nil {
		return uploadFailed("write avatar", err)
	}
	return nil
}

// ReadTasksOnce fetches the account's tasks ordered by id.
func (a *TreeAdapter) ReadTasksOnce(ctx context.Context, userID string) ([]schema.Task, error) {
	raw, err := a.store.Get(ctx, schema.TasksPath(userID))
	if err != nil {
		return nil, err
	}

	records, err := decodeTaskRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tasks for %s: %w", userID, err)
	}

	tasks := make([]schema.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.Task())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// ReadUserDetailsOnce fetches the account's profile details.
func (a *TreeAdapter) ReadUserDetailsOnce(ctx context.Context, userID string) (*schema.UserDetails, error) {
	raw, err := a.store.Get(ctx, schema.UserDetailsPath(userID))
	if err != nil {
		return nil, err
	}

	var details schema.UserDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("failed to decode user details for %s: %w", userID, err)
	}
	return &details, nil
}

// ResolveAvatarDownloadURL returns the download URL of the account's avatar.
func (a *TreeAdapter) ResolveAvatarDownloadURL(ctx context.Context, userID string) (string, error) {
	return a.store.BlobURL(ctx, schema.AvatarPath(userID))
}

// Ping checks reachability when the store supports it.
func (a *TreeAdapter) Ping(ctx context.Context) error {
	if p, ok := a.store.(Prober); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (a *TreeAdapter) set(ctx context.Context, op, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := a.store.Set(ctx, path, data); err != nil {
		return uploadFailed(op, err)
	}
	return nil
}

// decodeTaskRecords accepts the task map, or an array when the tree
// collapsed numeric-looking ids into one.
func decodeTaskRecords(raw json.RawMessage) ([]schema.TaskRecord, error) {
	var byID map[string]schema.TaskRecord
	if err := json.Unmarshal(raw, &byID); err == nil {
		out := make([]schema.TaskRecord, 0, len(byID))
		for id, r := range byID {
			if r.TaskID == "" {
				r.TaskID = id
			}
			out = append(out, r)
		}
		return out, nil
	}

	var list []schema.TaskRecord
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
