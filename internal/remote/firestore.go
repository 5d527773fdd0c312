package remote

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// maxAvatarBytes keeps the avatar document under Firestore's 1 MiB limit.
const maxAvatarBytes = 1000 * 1000

// Firestore implements Adapter on Cloud Firestore. Tasks are documents in
// users/{uid}/tasks; userDetails and categories are fields of users/{uid};
// the avatar is stored as bytes in avatars/{uid}.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore connects to the given project. FIRESTORE_EMULATOR_HOST is
// honored by the client library.
func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// Close releases the client.
func (fs *Firestore) Close() error {
	return fs.client.Close()
}

func (fs *Firestore) userDoc(userID string) *firestore.DocumentRef {
	return fs.client.Collection(schema.UsersRoot).Doc(userID)
}

// WriteTasks makes the tasks subcollection match tasks exactly.
//
// A transaction holds at most 500 writes, so the sets and deletes go through
// a BulkWriter instead. They are not applied atomically: a failure can leave
// some tasks written and some stale ones still present. The upload is
// retried with the full snapshot, which converges.
func (fs *Firestore) WriteTasks(ctx context.Context, userID string, tasks []schema.Task) error {
	coll := fs.userDoc(userID).Collection("tasks")
	path := schema.TasksPath(userID)

	existing, err := coll.Documents(ctx).GetAll()
	if err != nil {
		return uploadFailed("list tasks", classify(path, err))
	}

	keep := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		keep[t.ID] = true
	}

	bw := fs.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(tasks)+len(existing))
	queue := func(job *firestore.BulkWriterJob, err error) error {
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
		return nil
	}

	for _, doc := range existing {
		if keep[doc.Ref.ID] {
			continue
		}
		if err = queue(bw.Delete(doc.Ref)); err != nil {
			break
		}
	}
	if err == nil {
		for _, t := range tasks {
			if err = queue(bw.Set(coll.Doc(t.ID), t.Record())); err != nil {
				break
			}
		}
	}
	bw.End()
	if err != nil {
		return uploadFailed("write tasks", err)
	}

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return uploadFailed("write tasks", classify(path, err))
		}
	}
	return nil
}

// WriteUserDetails replaces the userDetails field of users/{uid}.
func (fs *Firestore) WriteUserDetails(ctx context.Context, userID string, details schema.UserDetails) error {
	_, err := fs.userDoc(userID).Set(ctx, map[string]interface{}{
		"userDetails": details,
	}, firestore.Merge([]string{"userDetails"}))
	if err != nil {
		return uploadFailed("write user details", classify(schema.UserDetailsPath(userID), err))
	}
	return nil
}

// WriteCategories replaces the categories field of users/{uid}.
func (fs *Firestore) WriteCategories(ctx context.Context, userID string, categories []schema.Category) error {
	if categories == nil {
		categories = []schema.Category{}
	}
	_, err := fs.userDoc(userID).Set(ctx, map[string]interface{}{
		"categories": categories,
	}, firestore.Merge([]string{"categories"}))
	if err != nil {
		return uploadFailed("write categories", classify(schema.CategoriesPath(userID), err))
	}
	return nil
}

// WriteAvatar stores the image bytes in avatars/{uid}.
func (fs *Firestore) WriteAvatar(ctx context.Context, userID, localFilePath string) error {
	if localFilePath == "" || schema.IsDefaultAvatar(localFilePath) {
		return nil
	}

	data, err := os.ReadFile(localFilePath)
	if err != nil {
		return invalidInput("read avatar", err)
	}
	if len(data) > maxAvatarBytes {
		return invalidInput("write avatar", fmt.Errorf("avatar is %d bytes, limit is %d", len(data), maxAvatarBytes))
	}

	_, err = fs.client.Collection(schema.AvatarsRoot).Doc(userID).Set(ctx, map[string]interface{}{
		"contentType": contentTypeFor(localFilePath),
		"data":        data,
		"updatedAt":   firestore.ServerTimestamp,
	})
	if err != nil {
		return uploadFailed("write avatar", classify(schema.AvatarPath(userID), err))
	}
	return nil
}

// ReadTasksOnce fetches every task document of the account.
func (fs *Firestore) ReadTasksOnce(ctx context.Context, userID string) ([]schema.Task, error) {
	path := schema.TasksPath(userID)
	iter := fs.userDoc(userID).Collection("tasks").Documents(ctx)
	defer iter.Stop()

	var tasks []schema.Task
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(path, err)
		}

		var r schema.TaskRecord
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to decode task %s: %w", doc.Ref.ID, err)
		}
		if r.TaskID == "" {
			r.TaskID = doc.Ref.ID
		}
		tasks = append(tasks, r.Task())
	}

	if len(tasks) == 0 {
		return nil, notFound(path)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// ReadUserDetailsOnce fetches the userDetails field of users/{uid}.
func (fs *Firestore) ReadUserDetailsOnce(ctx context.Context, userID string) (*schema.UserDetails, error) {
	path := schema.UserDetailsPath(userID)
	doc, err := fs.userDoc(userID).Get(ctx)
	if err != nil {
		return nil, classify(path, err)
	}

	var data struct {
		UserDetails *schema.UserDetails `firestore:"userDetails"`
	}
	if err := doc.DataTo(&data); err != nil {
		return nil, fmt.Errorf("failed to decode user details for %s: %w", userID, err)
	}
	if data.UserDetails == nil {
		return nil, notFound(path)
	}
	return data.UserDetails, nil
}

// ResolveAvatarDownloadURL returns the REST URL of the avatar document.
func (fs *Firestore) ResolveAvatarDownloadURL(ctx context.Context, userID string) (string, error) {
	doc, err := fs.client.Collection(schema.AvatarsRoot).Doc(userID).Get(ctx)
	if err != nil {
		return "", classify(schema.AvatarPath(userID), err)
	}
	return "https://firestore.googleapis.com/v1/" + doc.Ref.Path, nil
}

// Ping lists at most one user document.
func (fs *Firestore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := fs.client.Collection(schema.UsersRoot).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return classify("users", err)
	}
	return nil
}

// classify maps gRPC status codes onto the remote error taxonomy.
func classify(path string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return notFound(path)
	case codes.Unavailable, codes.DeadlineExceeded:
		return unreachable(path, err)
	default:
		return err
	}
}
