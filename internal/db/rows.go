package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Rows are listed by rowid. Upserts use ON CONFLICT DO UPDATE, which keeps
// the original rowid, so an edited row stays in its insertion slot.
const (
	selectTasks = `
	SELECT taskId, title, description, taskCompleted, starred, dueDateTime, categoryIds
	FROM tasks`
	selectUsers = `
	SELECT userId, name, email, occupation, avatarFilePath
	FROM users`
	selectCategories = `
	SELECT categoryId, categoryName, categoryIconIdentifier, categoryColorIdentifier
	FROM categories`
)

func upsertTask(ctx context.Context, ex dbtx, t schema.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
	INSERT INTO tasks (taskId, title, description, taskCompleted, starred, dueDateTime, categoryIds)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(taskId) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		taskCompleted = excluded.taskCompleted,
		starred = excluded.starred,
		dueDateTime = excluded.dueDateTime,
		categoryIds = excluded.categoryIds
	`

	_, err := ex.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Completed,
		t.Starred,
		millisToNull(schema.TimeToMillis(t.DueAt)),
		schema.JoinCategoryIDs(t.CategoryIDs),
	)
	if err != nil {
		return fault("upsert task "+t.ID, err)
	}
	return nil
}

func upsertUser(ctx context.Context, ex dbtx, u schema.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	var others int
	if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE userId != ?", u.ID).Scan(&others); err != nil {
		return fault("count users", err)
	}
	if others > 0 {
		return fmt.Errorf("cannot store user %s: %w", u.ID, ErrSecondUser)
	}

	query := `
	INSERT INTO users (userId, name, email, occupation, avatarFilePath)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(userId) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		occupation = excluded.occupation,
		avatarFilePath = excluded.avatarFilePath
	`

	_, err := ex.ExecContext(ctx, query,
		u.ID,
		stringToNull(u.Name),
		u.Email,
		stringToNull(u.Occupation),
		stringToNull(u.AvatarFilePath),
	)
	if err != nil {
		return fault("upsert user "+u.ID, err)
	}
	return nil
}

func upsertCategory(ctx context.Context, ex dbtx, c schema.Category) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}
	c.SetDefaults()

	query := `
	INSERT INTO categories (categoryId, categoryName, categoryIconIdentifier, categoryColorIdentifier)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(categoryId) DO UPDATE SET
		categoryName = excluded.categoryName,
		categoryIconIdentifier = excluded.categoryIconIdentifier,
		categoryColorIdentifier = excluded.categoryColorIdentifier
	`

	if _, err := ex.ExecContext(ctx, query, c.ID, c.Name, c.IconIdentifier, c.ColorIdentifier); err != nil {
		return fault("upsert category "+c.ID, err)
	}
	return nil
}

func queryTasks(ctx context.Context, q dbtx, where string, args ...any) ([]schema.Task, error) {
	rows, err := q.QueryContext(ctx, selectTasks+" "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fault("query tasks", err)
	}
	defer rows.Close()

	tasks := []schema.Task{}
	for rows.Next() {
		var t schema.Task
		var due sql.NullInt64
		var categoryIDs string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.Starred, &due, &categoryIDs); err != nil {
			return nil, fault("scan task", err)
		}
		t.DueAt = schema.MillisToTime(nullToMillis(due))
		t.CategoryIDs = schema.SplitCategoryIDs(categoryIDs)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("iterate tasks", err)
	}
	return tasks, nil
}

func queryUsers(ctx context.Context, q dbtx, where string, args ...any) ([]schema.User, error) {
	rows, err := q.QueryContext(ctx, selectUsers+" "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fault("query users", err)
	}
	defer rows.Close()

	users := []schema.User{}
	for rows.Next() {
		var u schema.User
		var name, occupation, avatar sql.NullString
		if err := rows.Scan(&u.ID, &name, &u.Email, &occupation, &avatar); err != nil {
			return nil, fault("scan user", err)
		}
		u.Name = name.String
		u.Occupation = occupation.String
		u.AvatarFilePath = avatar.String
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("iterate users", err)
	}
	return users, nil
}

func queryCategories(ctx context.Context, q dbtx, where string, args ...any) ([]schema.Category, error) {
	rows, err := q.QueryContext(ctx, selectCategories+" "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fault("query categories", err)
	}
	defer rows.Close()

	categories := []schema.Category{}
	for rows.Next() {
		var c schema.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IconIdentifier, &c.ColorIdentifier); err != nil {
			return nil, fault("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("iterate categories", err)
	}
	return categories, nil
}

func snapshotOf(ctx context.Context, q dbtx, kind schema.Kind) (Snapshot, error) {
	snap := Snapshot{Kind: kind}
	var err error
	switch kind {
	case schema.KindTasks:
		snap.Tasks, err = queryTasks(ctx, q, "")
	case schema.KindUsers:
		snap.Users, err = queryUsers(ctx, q, "")
	case schema.KindCategories:
		snap.Categories, err = queryCategories(ctx, q, "")
	default:
		err = fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return snap, err
	}
	snap.Owner, err = activeUser(ctx, q)
	return snap, err
}

func deleteRow(ctx context.Context, ex dbtx, kind schema.Kind, id string) error {
	var query string
	switch kind {
	case schema.KindTasks:
		query = `DELETE FROM tasks WHERE taskId = ?`
	case schema.KindUsers:
		query = `DELETE FROM users WHERE userId = ?`
	case schema.KindCategories:
		query = `DELETE FROM categories WHERE categoryId = ?`
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if _, err := ex.ExecContext(ctx, query, id); err != nil {
		return fault(fmt.Sprintf("delete %s %s", kind, id), err)
	}
	return nil
}

func clearTable(ctx context.Context, ex dbtx, kind schema.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	// kind is one of three constants, safe to splice.
	if _, err := ex.ExecContext(ctx, "DELETE FROM "+string(kind)); err != nil {
		return fault("clear "+string(kind), err)
	}
	return nil
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func millisToNull(ms *int64) sql.NullInt64 {
	if ms == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ms, Valid: true}
}

func nullToMillis(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
