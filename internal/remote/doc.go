// Package remote mirrors local entities to a remote hierarchical store.
//
// An Adapter translates task, category and profile snapshots into remote
// writes and performs the single point-in-time reads used during sign-in
// import. It carries no business logic.
//
// Two families of Adapter exist:
//
//   - TreeAdapter, which lays entities out on any Store: a JSON document
//     tree plus blob storage. Memory and HTTPStore (a client for the
//     todomirror server) are Stores.
//   - Firestore, which maps the same layout onto documents and
//     subcollections.
//
// Remote layout:
//
//	users/{uid}/tasks/{taskId}  task record
//	users/{uid}/userDetails     {name, occupation, avatarFilePath}
//	users/{uid}/categories      category list
//	avatars/{uid}               avatar image bytes
package remote
