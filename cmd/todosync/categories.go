package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	GroupID: "tasks",
	Short:   "Manage task categories",
}

var (
	categoryAddIcon  string
	categoryAddColor string
)

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a category",
	Long: fmt.Sprintf(`Add a category. Unknown icon or color keys fall back to the defaults.

Icons:  %s
Colors: %s`, strings.Join(schema.IconKeys(), ", "), strings.Join(schema.ColorKeys(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := schema.NewCategory(strings.Join(args, " "), categoryAddIcon, categoryAddColor)
		return withRuntime(ctx, func(rt *runtime) error {
			if err := rt.app.SaveCategory(ctx, c, nil); err != nil {
				return err
			}
			fmt.Printf("%s Added category %s %s\n", renderPass("✓"), renderMuted(shortID(c.ID)), renderCategory(c))
			return nil
		})
	},
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		categories, err := rt.store.Categories(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", renderAccent("Categories"), renderMuted(fmt.Sprintf("(%d)", len(categories))))
		for _, c := range categories {
			fmt.Printf("  %s %s %s\n", renderMuted(shortID(c.ID)), renderCategory(c), renderMuted(c.IconIdentifier))
		}
		return nil
	},
}

var categoryRmCmd = &cobra.Command{
	Use:     "rm <id|name>",
	Aliases: []string{"delete"},
	Short:   "Delete a category and remove it from every task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			c, err := resolveCategory(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.app.DeleteCategory(ctx, c.ID, nil); err != nil {
				return err
			}
			fmt.Printf("%s Deleted category %s\n", renderPass("✓"), c.Name)
			return nil
		})
	},
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryAddIcon, "icon", schema.DefaultIcon, "icon key")
	categoryAddCmd.Flags().StringVar(&categoryAddColor, "color", schema.DefaultColor, "color key")

	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryRmCmd)
	rootCmd.AddCommand(categoryCmd)
}

func categoryIndex(ctx context.Context, store *db.DB) (map[string]schema.Category, error) {
	categories, err := store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]schema.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index, nil
}

// resolveCategory finds a category by id, unique id prefix or exact name
// (case-insensitive).
func resolveCategory(ctx context.Context, store *db.DB, ref string) (*schema.Category, error) {
	categories, err := store.Categories(ctx)
	if err != nil {
		return nil, err
	}

	var matches []schema.Category
	for _, c := range categories {
		if c.ID == ref {
			return &c, nil
		}
		if strings.HasPrefix(c.ID, ref) || strings.EqualFold(c.Name, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("category %q: %w", ref, db.ErrNotFound)
	case 1:
		return &matches[0], nil
	}
	return nil, fmt.Errorf("category %q is ambiguous", ref)
}
