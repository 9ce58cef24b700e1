package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotUnavailable is returned when the classes subtree could not be read.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrWriteFailed is returned when the store rejected the batched update.
	ErrWriteFailed = errors.New("write failed")
	// ErrBusy is returned by Driver.Trigger when a pass is already running. The trigger is dropped.
	ErrBusy = errors.New("a reconciliation pass is already running")
	// ErrStopped is returned by Driver.Trigger once the driver was stopped.
	ErrStopped = errors.New("reconciliation driver stopped")
)

// PassError describes a failed pass: Kind is one of ErrSnapshotUnavailable or ErrWriteFailed.
type PassError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%v: %s %q: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *PassError) Is(target error) bool { return target == e.Kind }

func (e *PassError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the store error.
func (e *PassError) Cause() error { return e.Err }
