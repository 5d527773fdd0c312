package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a single to-do item.
//
// The JSON form is the remote wire record: dueDateTime is epoch milliseconds
// (null when unset) and categoryIds is always an array.
type Task struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	Starred     bool
	DueAt       *time.Time
	CategoryIDs []string
}

// TaskRecord is the wire shape stored at users/{uid}/tasks/{taskId}.
type TaskRecord struct {
	TaskID        string   `json:"taskId" firestore:"taskId"`
	Title         string   `json:"title" firestore:"title"`
	Description   string   `json:"description" firestore:"description"`
	TaskCompleted bool     `json:"taskCompleted" firestore:"taskCompleted"`
	Starred       bool     `json:"starred" firestore:"starred"`
	DueDateTime   *int64   `json:"dueDateTime" firestore:"dueDateTime"`
	CategoryIDs   []string `json:"categoryIds" firestore:"categoryIds"`
}

// Record converts the task to its wire shape.
func (t Task) Record() TaskRecord {
	ids := t.CategoryIDs
	if ids == nil {
		ids = []string{}
	}
	return TaskRecord{
		TaskID:        t.ID,
		Title:         t.Title,
		Description:   t.Description,
		TaskCompleted: t.Completed,
		Starred:       t.Starred,
		DueDateTime:   TimeToMillis(t.DueAt),
		CategoryIDs:   ids,
	}
}

// Task converts a wire record back into a task.
func (r TaskRecord) Task() Task {
	ids := r.CategoryIDs
	if ids == nil {
		ids = []string{}
	}
	return Task{
		ID:          r.TaskID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.TaskCompleted,
		Starred:     r.Starred,
		DueAt:       MillisToTime(r.DueDateTime),
		CategoryIDs: ids,
	}
}

// MarshalJSON encodes the task as its TaskRecord.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}

// UnmarshalJSON decodes a TaskRecord into the task.
func (t *Task) UnmarshalJSON(data []byte) error {
	var r TaskRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*t = r.Task()
	return nil
}

// TimeToMillis converts an optional timestamp to epoch milliseconds.
func TimeToMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// MillisToTime converts optional epoch milliseconds to a UTC timestamp.
func MillisToTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

// NewTask returns a task with a fresh client-generated id.
func NewTask(title, description string) Task {
	return Task{
		ID:          NewID(),
		Title:       title,
		Description: description,
		CategoryIDs: []string{},
	}
}

// NewID generates a globally unique entity id.
func NewID() string {
	return uuid.NewString()
}

// Kind implements Entity.
func (t Task) Kind() Kind { return KindTasks }

// Key implements Entity.
func (t Task) Key() string { return t.ID }

// Validate checks if the Task has valid field values.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title is required")
	}
	for _, id := range t.CategoryIDs {
		if id == "" {
			return fmt.Errorf("task %s has an empty category id", t.ID)
		}
		if strings.Contains(id, ",") {
			return fmt.Errorf("category id %q must not contain a comma", id)
		}
	}
	return nil
}

// HasCategory reports whether the task references the category.
func (t Task) HasCategory(categoryID string) bool {
	return slices.Contains(t.CategoryIDs, categoryID)
}

// WithoutCategory returns a copy of the task with categoryID removed from its
// category list. The second result is false when nothing was removed.
func (t Task) WithoutCategory(categoryID string) (Task, bool) {
	if !t.HasCategory(categoryID) {
		return t, false
	}
	out := t
	out.CategoryIDs = make([]string, 0, len(t.CategoryIDs)-1)
	for _, id := range t.CategoryIDs {
		if id != categoryID {
			out.CategoryIDs = append(out.CategoryIDs, id)
		}
	}
	return out, true
}

// JoinCategoryIDs encodes category ids the way the tasks table stores them.
func JoinCategoryIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// SplitCategoryIDs is the inverse of JoinCategoryIDs.
func SplitCategoryIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// Group splits tasks into uncompleted and completed, keeping their order.
func Group(tasks []Task) (uncompleted, completed []Task) {
	uncompleted = []Task{}
	completed = []Task{}
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			uncompleted = append(uncompleted, t)
		}
	}
	return uncompleted, completed
}

// Starred filters tasks down to the starred ones.
func Starred(tasks []Task) []Task {
	out := []Task{}
	for _, t := range tasks {
		if t.Starred {
			out = append(out, t)
		}
	}
	return out
}
