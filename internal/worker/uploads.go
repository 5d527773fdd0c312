package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BodaDayo/TODO-Mobile/internal/remote"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// UploadHandlers returns the handler set that mirrors each job kind through
// adapter.
func UploadHandlers(adapter remote.Adapter) map[Kind]Handler {
	return map[Kind]Handler{
		KindTasks:       uploadTasks(adapter),
		KindCategories:  uploadCategories(adapter),
		KindUserDetails: uploadUserDetails(adapter),
		KindAvatar:      uploadAvatar(adapter),
	}
}

func uploadTasks(adapter remote.Adapter) Handler {
	return func(ctx context.Context, in Input) error {
		userID, err := requireUser(in)
		if err != nil {
			return err
		}
		var tasks []schema.Task
		if err := json.Unmarshal([]byte(in[schema.InputNewDataJSON]), &tasks); err != nil {
			return Permanent(fmt.Errorf("failed to decode tasks payload: %w", err))
		}
		return adapter.WriteTasks(ctx, userID, tasks)
	}
}

func uploadCategories(adapter remote.Adapter) Handler {
	return func(ctx context.Context, in Input) error {
		userID, err := requireUser(in)
		if err != nil {
			return err
		}
		var categories []schema.Category
		if err := json.Unmarshal([]byte(in[schema.InputNewDataJSON]), &categories); err != nil {
			return Permanent(fmt.Errorf("failed to decode categories payload: %w", err))
		}
		return adapter.WriteCategories(ctx, userID, categories)
	}
}

func uploadUserDetails(adapter remote.Adapter) Handler {
	return func(ctx context.Context, in Input) error {
		userID, err := requireUser(in)
		if err != nil {
			return err
		}
		return adapter.WriteUserDetails(ctx, userID, schema.UserDetails{
			Name:           in[schema.InputName],
			Occupation:     in[schema.InputOccupation],
			AvatarFilePath: in[schema.InputAvatarFilePath],
		})
	}
}

func uploadAvatar(adapter remote.Adapter) Handler {
	return func(ctx context.Context, in Input) error {
		userID, err := requireUser(in)
		if err != nil {
			return err
		}
		err = adapter.WriteAvatar(ctx, userID, in[schema.InputAvatarFilePath])
		if errors.Is(err, remote.ErrInvalidInput) {
			return Permanent(err)
		}
		return err
	}
}

func requireUser(in Input) (string, error) {
	userID := in[schema.InputUserID]
	if userID == "" {
		return "", Permanent(fmt.Errorf("job input has no %s", schema.InputUserID))
	}
	return userID, nil
}

// TasksInput builds the {userId, newDataJson} input for a tasks snapshot.
func TasksInput(userID string, tasks []schema.Task) (Input, error) {
	return snapshotInput(userID, tasks)
}

// CategoriesInput builds the {userId, newDataJson} input for a categories
// snapshot.
func CategoriesInput(userID string, categories []schema.Category) (Input, error) {
	return snapshotInput(userID, categories)
}

func snapshotInput[T any](userID string, items []T) (Input, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return Input{
		schema.InputUserID:      userID,
		schema.InputNewDataJSON: string(data),
	}, nil
}

// UserDetailsInput builds the {userId, name, occupation, avatarFilePath}
// input for a profile upload.
func UserDetailsInput(u schema.User) Input {
	return Input{
		schema.InputUserID:         u.ID,
		schema.InputName:           u.Name,
		schema.InputOccupation:     u.Occupation,
		schema.InputAvatarFilePath: u.AvatarFilePath,
	}
}

// AvatarInput builds the {userId, avatarFilePath} input for an avatar upload.
func AvatarInput(userID, avatarFilePath string) Input {
	return Input{
		schema.InputUserID:         userID,
		schema.InputAvatarFilePath: avatarFilePath,
	}
}
