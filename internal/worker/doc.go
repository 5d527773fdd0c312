// Package worker runs background uploads with unique-work semantics.
//
// Every job is identified by a Key of (user id, job kind). The scheduler
// holds at most one entry per key:
//
//   - Enqueue on a queued key replaces its payload (latest snapshot wins).
//   - Enqueue on a running key parks the payload; it is queued again as soon
//     as the running attempt finishes, so at most one upload per key is ever
//     in flight.
//   - A failed attempt is retried with exponential backoff until
//     MaxAttempts, then dropped. The next natural snapshot corrects the remote.
//   - Nothing is dispatched while the Connectivity reports offline.
//
// Jobs live in memory only; a process exit loses whatever is still queued.
// Short-lived callers use Drain to deliver queued work before exiting.
package worker
