package schema

import (
	"fmt"
	"strings"
)

// Category groups tasks under a name, icon and color.
type Category struct {
	ID              string `json:"categoryId" firestore:"categoryId"`
	Name            string `json:"categoryName" firestore:"categoryName"`
	IconIdentifier  string `json:"categoryIconIdentifier" firestore:"categoryIconIdentifier"`
	ColorIdentifier string `json:"categoryColorIdentifier" firestore:"categoryColorIdentifier"`
}

// NewCategory returns a category with a fresh id and resolved lookup keys.
func NewCategory(name, icon, color string) Category {
	c := Category{
		ID:              NewID(),
		Name:            name,
		IconIdentifier:  icon,
		ColorIdentifier: color,
	}
	c.SetDefaults()
	return c
}

// Kind implements Entity.
func (c Category) Kind() Kind { return KindCategories }

// Key implements Entity.
func (c Category) Key() string { return c.ID }

// Validate checks if the Category has valid field values.
func (c Category) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("category id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category name is required")
	}
	return nil
}

// SetDefaults replaces unknown icon and color keys with the table defaults.
func (c *Category) SetDefaults() {
	c.IconIdentifier = ResolveIcon(c.IconIdentifier)
	c.ColorIdentifier = ResolveColor(c.ColorIdentifier)
}
