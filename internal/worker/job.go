package worker

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Kind names a remote resource an upload job writes.
type Kind string

const (
	KindTasks       Kind = "tasks"
	KindCategories  Kind = "categories"
	KindUserDetails Kind = "user_details"
	KindAvatar      Kind = "avatar"
)

// Kinds lists every job kind.
var Kinds = []Kind{KindTasks, KindCategories, KindUserDetails, KindAvatar}

// Key identifies unique work: at most one queued or running job per key.
type Key struct {
	UserID string
	Kind   Kind
}

func (k Key) String() string {
	return k.UserID + "/" + string(k.Kind)
}

// Input is the flat string map a job carries.
type Input map[string]string

// Clone returns a copy of in.
func (in Input) Clone() Input {
	if in == nil {
		return Input{}
	}
	return maps.Clone(in)
}

// State is the lifecycle position of a job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
)

// JobInfo describes one scheduled job.
type JobInfo struct {
	Key       Key
	State     State
	Attempts  int
	NotBefore time.Time
	// Pending is true when a newer payload waits behind a running attempt.
	Pending bool
}

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("scheduler stopped")

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the scheduler drops the job instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func validateKey(k Key) error {
	if k.UserID == "" {
		return fmt.Errorf("job key %q has no user id", k)
	}
	if k.Kind == "" {
		return fmt.Errorf("job key %q has no kind", k)
	}
	return nil
}
