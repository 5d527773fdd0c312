// Package daemon bridges local store changes to background uploads.
//
// # Architecture
//
//   - Observer: one subscription per entity kind on the local store. Every
//     snapshot is serialized into job input and handed to the upload
//     scheduler, keyed by (active user, kind). Snapshots arriving while no
//     user is signed in are ignored.
//   - FileWatcher: fsnotify on the data directory. Writes to the SQLite files
//     by another process trigger a store Refresh, which re-emits changed
//     kinds to the Observer. Edits to the signed-in user's avatar file
//     enqueue an avatar upload.
//   - Daemon: owns both, debounces file events and handles shutdown.
//
// Example:
//
//	d, err := daemon.New(store, scheduler, dataDir, daemon.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	return d.Run(ctx) // blocks until ctx is cancelled
package daemon
