// Package schema provides the entities mirrored between the local store and
// the remote store.
//
// # Overview
//
// Three entity kinds exist: Task, User and Category. The local store owns all
// three tables; the remote store is a downstream mirror that is only read
// back during the account import that follows a sign-in.
//
//	Local Store (SQLite)                 Remote Store
//	     ├── tasks       ── TaskRecord ──▶  users/{uid}/tasks/{taskId}
//	     ├── users       ── UserDetails ─▶  users/{uid}/userDetails
//	     └── categories  ── CategoryRecord▶ users/{uid}/categories
//	                                        avatars/{uid} (blob)
//
// # Relationships
//
// Task references Category through CategoryIDs. This is a weak reference:
// deleting a category never deletes tasks, it only removes the id from the
// tasks that carry it.
//
// # Lookup tables
//
// Category icons and colors are keys into fixed tables (see lookup.go).
// Unknown keys resolve to the table defaults instead of failing.
package schema
