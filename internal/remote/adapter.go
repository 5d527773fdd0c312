package remote

import (
	"context"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// Adapter is the remote side of synchronization. Writes replace the whole
// remote value for the account; reads are single fetches, never
// subscriptions, and fail with ErrRemoteUnavailable when nothing is stored
// or the remote is unreachable.
type Adapter interface {
	// WriteTasks replaces users/{uid}/tasks with exactly tasks.
	WriteTasks(ctx context.Context, userID string, tasks []schema.Task) error
	// WriteUserDetails replaces users/{uid}/userDetails.
	WriteUserDetails(ctx context.Context, userID string, details schema.UserDetails) error
	// WriteAvatar uploads the image at localFilePath to avatars/{uid}.
	WriteAvatar(ctx context.Context, userID, localFilePath string) error
	// WriteCategories replaces users/{uid}/categories with exactly categories.
	WriteCategories(ctx context.Context, userID string, categories []schema.Category) error
	// ReadTasksOnce fetches the account's tasks.
	ReadTasksOnce(ctx context.Context, userID string) ([]schema.Task, error)
	// ReadUserDetailsOnce fetches the account's profile details.
	ReadUserDetailsOnce(ctx context.Context, userID string) (*schema.UserDetails, error)
	// ResolveAvatarDownloadURL returns a URL the avatar can be fetched from.
	ResolveAvatarDownloadURL(ctx context.Context, userID string) (string, error)
}

// Prober is implemented by adapters that can cheaply check reachability.
type Prober interface {
	Ping(ctx context.Context) error
}
