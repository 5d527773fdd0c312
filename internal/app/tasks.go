package app

import (
	"context"
	"sync"
	"time"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

type trashed struct {
	task  schema.Task
	timer *time.Timer
}

// SaveTask stores a new task. An empty id is filled in.
func (a *App) SaveTask(ctx context.Context, task schema.Task, done Done) error {
	if task.ID == "" {
		task.ID = schema.NewID()
	}
	if task.CategoryIDs == nil {
		task.CategoryIDs = []string{}
	}
	return report(done, wrap("save task", a.store.PutTask(ctx, task)))
}

// UpdateTask replaces an existing task. Fails with db.ErrNotFound if the
// task is gone.
func (a *App) UpdateTask(ctx context.Context, task schema.Task, done Done) error {
	err := a.store.Update(ctx, func(tx *db.Tx) error {
		tasks, err := tx.Tasks()
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.ID == task.ID {
				return tx.Put(task)
			}
		}
		return db.ErrNotFound
	})
	return report(done, wrap("update task "+task.ID, err))
}

// SetTaskCompleted marks a task completed or not.
func (a *App) SetTaskCompleted(ctx context.Context, id string, completed bool, done Done) error {
	return a.modifyTask(ctx, id, func(t *schema.Task) { t.Completed = completed }, done)
}

// SetTaskStarred stars or unstars a task.
func (a *App) SetTaskStarred(ctx context.Context, id string, starred bool, done Done) error {
	return a.modifyTask(ctx, id, func(t *schema.Task) { t.Starred = starred }, done)
}

func (a *App) modifyTask(ctx context.Context, id string, fn func(*schema.Task), done Done) error {
	task, err := a.store.Task(ctx, id)
	if err != nil {
		return report(done, wrap("update task "+id, err))
	}
	fn(task)
	return a.UpdateTask(ctx, *task, done)
}

// DeleteTask removes a task. It can be restored with UndoDelete until the
// undo window passes.
func (a *App) DeleteTask(ctx context.Context, id string, done Done) error {
	task, err := a.store.Task(ctx, id)
	if err != nil {
		return report(done, wrap("delete task "+id, err))
	}
	if err := a.store.Delete(ctx, schema.KindTasks, id); err != nil {
		return report(done, wrap("delete task "+id, err))
	}

	a.trashMu.Lock()
	if old, ok := a.trash[id]; ok {
		old.timer.Stop()
	}
	entry := &trashed{task: *task}
	entry.timer = time.AfterFunc(a.config.UndoWindow, func() { a.expire(id, entry) })
	a.trash[id] = entry
	a.trashMu.Unlock()

	return report(done, nil)
}

// UndoDelete restores a task deleted within the undo window.
func (a *App) UndoDelete(ctx context.Context, id string, done Done) error {
	a.trashMu.Lock()
	entry, ok := a.trash[id]
	if ok {
		entry.timer.Stop()
		delete(a.trash, id)
	}
	a.trashMu.Unlock()

	if !ok {
		return report(done, wrap("undo delete of "+id, ErrUndoExpired))
	}
	return report(done, wrap("restore task "+id, a.store.PutTask(ctx, entry.task)))
}

func (a *App) expire(id string, entry *trashed) {
	a.trashMu.Lock()
	defer a.trashMu.Unlock()
	if a.trash[id] == entry {
		delete(a.trash, id)
	}
}

// TaskGroups is one tasks snapshot split the way the task screens show it.
type TaskGroups struct {
	Version     uint64
	Uncompleted []schema.Task
	Completed   []schema.Task
	Starred     []schema.Task
}

// GroupTasks splits tasks into the three views.
func GroupTasks(tasks []schema.Task) TaskGroups {
	uncompleted, completed := schema.Group(tasks)
	return TaskGroups{
		Uncompleted: uncompleted,
		Completed:   completed,
		Starred:     schema.Starred(tasks),
	}
}

// TaskView streams grouped task lists.
type TaskView struct {
	sub  *db.Subscription
	ch   chan TaskGroups
	once sync.Once
	done chan struct{}
}

// WatchTasks subscribes to grouped task lists. The current grouping arrives
// first; a slow reader only sees the latest.
func (a *App) WatchTasks(ctx context.Context) (*TaskView, error) {
	sub, err := a.store.Watch(ctx, schema.KindTasks)
	if err != nil {
		return nil, err
	}
	v := &TaskView{sub: sub, ch: make(chan TaskGroups, 1), done: make(chan struct{})}
	go v.run()
	return v, nil
}

func (v *TaskView) run() {
	defer close(v.ch)
	for snap := range v.sub.C() {
		groups := GroupTasks(snap.Tasks)
		groups.Version = snap.Version
		// Replace an undelivered grouping with the newer one
		select {
		case <-v.ch:
		default:
		}
		select {
		case v.ch <- groups:
		case <-v.done:
			return
		}
	}
}

// C returns the channel groupings arrive on. It closes after Close.
func (v *TaskView) C() <-chan TaskGroups {
	return v.ch
}

// Close stops the view.
func (v *TaskView) Close() {
	v.once.Do(func() {
		close(v.done)
		v.sub.Close()
	})
}
