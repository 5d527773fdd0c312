package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Add, list and change tasks",
}

var (
	taskAddDesc       string
	taskAddDue        string
	taskAddStar       bool
	taskAddCategories []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task to the local list. It is uploaded in the background.

The --due flag accepts natural language such as "tomorrow 5pm" or
"next friday", or an RFC 3339 timestamp.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		task := schema.NewTask(strings.Join(args, " "), taskAddDesc)
		task.Starred = taskAddStar

		if taskAddDue != "" {
			due, err := parseDue(taskAddDue, time.Now())
			if err != nil {
				return err
			}
			task.DueAt = &due
		}

		return withRuntime(ctx, func(rt *runtime) error {
			for _, ref := range taskAddCategories {
				c, err := resolveCategory(ctx, rt.store, ref)
				if err != nil {
					return err
				}
				task.CategoryIDs = append(task.CategoryIDs, c.ID)
			}
			if err := rt.app.SaveTask(ctx, task, nil); err != nil {
				return err
			}
			fmt.Printf("%s Added task %s %s\n", renderPass("✓"), renderMuted(shortID(task.ID)), task.Title)
			return nil
		})
	},
}

var (
	taskListAll     bool
	taskListStarred bool
)

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		tasks, err := rt.store.Tasks(ctx)
		if err != nil {
			return err
		}
		categories, err := categoryIndex(ctx, rt.store)
		if err != nil {
			return err
		}

		if taskListStarred {
			printTasks("Starred", schema.Starred(tasks), categories)
			return nil
		}
		uncompleted, completed := schema.Group(tasks)
		printTasks("To do", uncompleted, categories)
		if taskListAll {
			printTasks("Completed", completed, categories)
		} else if len(completed) > 0 {
			fmt.Println(renderMuted(fmt.Sprintf("%d completed (use --all to show)", len(completed))))
		}
		return nil
	},
}

func printTasks(title string, tasks []schema.Task, categories map[string]schema.Category) {
	fmt.Printf("%s %s\n", renderAccent(title), renderMuted(fmt.Sprintf("(%d)", len(tasks))))
	for _, t := range tasks {
		fmt.Println("  " + renderTask(t, categories))
	}
}

var taskDoneUndo bool

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			task, err := resolveTask(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.app.SetTaskCompleted(ctx, task.ID, !taskDoneUndo, nil); err != nil {
				return err
			}
			state := "completed"
			if taskDoneUndo {
				state = "reopened"
			}
			fmt.Printf("%s Task %s %s\n", renderPass("✓"), task.Title, state)
			return nil
		})
	},
}

var taskStarOff bool

var taskStarCmd = &cobra.Command{
	Use:   "star <id>",
	Short: "Star a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			task, err := resolveTask(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.app.SetTaskStarred(ctx, task.ID, !taskStarOff, nil); err != nil {
				return err
			}
			verb := "Starred"
			if taskStarOff {
				verb = "Unstarred"
			}
			fmt.Printf("%s %s %s\n", renderPass("✓"), verb, task.Title)
			return nil
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			task, err := resolveTask(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.app.DeleteTask(ctx, task.ID, nil); err != nil {
				return err
			}
			fmt.Printf("%s Deleted %s\n", renderPass("✓"), task.Title)
			return nil
		})
	},
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddDesc, "desc", "d", "", "task description")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "due date, e.g. \"tomorrow 9am\"")
	taskAddCmd.Flags().BoolVarP(&taskAddStar, "star", "s", false, "star the task")
	taskAddCmd.Flags().StringSliceVarP(&taskAddCategories, "category", "c", nil, "category id or name (repeatable)")

	taskListCmd.Flags().BoolVarP(&taskListAll, "all", "a", false, "include completed tasks")
	taskListCmd.Flags().BoolVar(&taskListStarred, "starred", false, "only starred tasks")

	taskDoneCmd.Flags().BoolVar(&taskDoneUndo, "undo", false, "mark the task not completed")
	taskStarCmd.Flags().BoolVar(&taskStarOff, "off", false, "remove the star")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskStarCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue accepts RFC 3339 or a natural-language expression relative to now.
func parseDue(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	r, err := dueParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", s)
	}
	return r.Time, nil
}

// resolveTask finds a task by id, unique id prefix or unique title prefix
// (case-insensitive).
func resolveTask(ctx context.Context, store *db.DB, ref string) (*schema.Task, error) {
	if t, err := store.Task(ctx, ref); err == nil {
		return t, nil
	}
	tasks, err := store.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(ref)
	var matches []*schema.Task
	for i := range tasks {
		if strings.HasPrefix(tasks[i].ID, ref) || strings.HasPrefix(strings.ToLower(tasks[i].Title), lower) {
			matches = append(matches, &tasks[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("task %q: %w", ref, db.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("task %q is ambiguous (%d matches)", ref, len(matches))
}
