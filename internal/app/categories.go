package app

import (
	"context"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// SaveCategory stores a new category. An empty id is filled in and unknown
// icon or color keys fall back to the defaults.
func (a *App) SaveCategory(ctx context.Context, c schema.Category, done Done) error {
	if c.ID == "" {
		c.ID = schema.NewID()
	}
	c.SetDefaults()
	return report(done, wrap("save category", a.store.PutCategory(ctx, c)))
}

// UpdateCategory replaces an existing category.
func (a *App) UpdateCategory(ctx context.Context, c schema.Category, done Done) error {
	if _, err := a.store.Category(ctx, c.ID); err != nil {
		return report(done, wrap("update category "+c.ID, err))
	}
	c.SetDefaults()
	return report(done, wrap("update category "+c.ID, a.store.PutCategory(ctx, c)))
}

// DeleteCategory removes a category and strips its id from every task that
// references it, in one transaction.
func (a *App) DeleteCategory(ctx context.Context, id string, done Done) error {
	err := a.store.Update(ctx, func(tx *db.Tx) error {
		tasks, err := tx.Tasks()
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if stripped, changed := t.WithoutCategory(id); changed {
				if err := tx.Put(stripped); err != nil {
					return err
				}
			}
		}
		return tx.Delete(schema.KindCategories, id)
	})
	return report(done, wrap("delete category "+id, err))
}
