package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// ExportTasks writes every task to w as one wire record per line and
// returns the number written.
func (db *DB) ExportTasks(ctx context.Context, w io.Writer) (int, error) {
	tasks, err := db.Tasks(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, t := range tasks {
		if err := enc.Encode(t.Record()); err != nil {
			return i, fmt.Errorf("failed to write task %s: %w", t.ID, err)
		}
	}
	return len(tasks), nil
}

// ImportTasks reads wire records from r, one per line, and puts them all in
// a single transaction. Blank lines are skipped. Existing tasks with the same
// id are replaced. Nothing is written if any line is invalid.
func (db *DB) ImportTasks(ctx context.Context, r io.Reader) (int, error) {
	var tasks []schema.Task

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec schema.TaskRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return 0, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		task := rec.Task()
		if err := task.Validate(); err != nil {
			return 0, fmt.Errorf("invalid task at line %d: %w", lineNum, err)
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	err := db.Update(ctx, func(tx *Tx) error {
		for _, t := range tasks {
			if err := tx.Put(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}
