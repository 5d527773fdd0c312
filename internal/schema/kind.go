package schema

import "fmt"

// Kind identifies one of the entity tables.
type Kind string

const (
	// KindTasks is the tasks table.
	KindTasks Kind = "tasks"
	// KindUsers is the users table. It holds at most one row.
	KindUsers Kind = "users"
	// KindCategories is the categories table.
	KindCategories Kind = "categories"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{KindTasks, KindUsers, KindCategories}

// Valid reports whether k names a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTasks, KindUsers, KindCategories:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Entity is implemented by every row type stored locally.
type Entity interface {
	// Kind returns the table the entity lives in.
	Kind() Kind
	// Key returns the primary key.
	Key() string
	// Validate checks the entity invariants before it is saved.
	Validate() error
}
