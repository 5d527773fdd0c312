package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable means the remote has no record at the requested
	// location or could not be reached. Import treats both the same way.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrUploadFailed means a remote write was rejected or timed out.
	ErrUploadFailed = errors.New("upload failed")

	// ErrInvalidInput means the upload can never succeed as given, such as
	// a missing or oversized avatar file. Retrying does not help.
	ErrInvalidInput = errors.New("invalid upload input")
)

// Reason says why the remote was unavailable.
type Reason int

const (
	// NotFound means the remote answered but holds no data there.
	NotFound Reason = iota
	// Unreachable means the remote could not be contacted.
	Unreachable
)

func (r Reason) String() string {
	switch r {
	case NotFound:
		return "not found"
	case Unreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// UnavailableError is an ErrRemoteUnavailable with the reason attached for
// diagnostics.
type UnavailableError struct {
	Path   string
	Reason Reason
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Path, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrRemoteUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrRemoteUnavailable }

func notFound(path string) error {
	return &UnavailableError{Path: path, Reason: NotFound}
}

func unreachable(path string, err error) error {
	return &UnavailableError{Path: path, Reason: Unreachable, Err: err}
}

// IsNotFound reports whether err is an UnavailableError with Reason NotFound.
func IsNotFound(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) && ue.Reason == NotFound
}

func uploadFailed(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUploadFailed, err)
}

func invalidInput(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w: %w", op, ErrUploadFailed, ErrInvalidInput, err)
}
