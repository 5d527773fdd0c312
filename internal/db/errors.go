package db

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorageFault marks a failure of the storage medium itself.
	// It is surfaced to the caller and never retried automatically.
	ErrStorageFault = errors.New("storage fault")

	// ErrNotFound is returned by single-row lookups when the row is absent.
	ErrNotFound = errors.New("not found")

	// ErrSecondUser is returned when a user row is written while a row for
	// a different account still exists.
	ErrSecondUser = errors.New("a different user is already stored; clear users first")
)

// FaultError wraps a driver or filesystem error as a storage fault.
type FaultError struct {
	Op  string
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorageFault) hold for every FaultError.
func (e *FaultError) Is(target error) bool { return target == ErrStorageFault }

// fault wraps err as a storage fault. Context errors pass through untouched
// so cancellation is not mistaken for a disk failure.
func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return &FaultError{Op: op, Err: err}
}
