package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by operations that need a logged-in session
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrNoReport means the backend has no report to show; it is not a failure
	ErrNoReport = errors.New("no report available")
	// ErrBusy is returned when a request of the same kind is already in flight
	ErrBusy = errors.New("request already in progress")
	// ErrCapabilityUnavailable means the device lacks an optional capability
	ErrCapabilityUnavailable = errors.New("capability not available")
)

// ValidationError is raised before any network call when input is incomplete
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// TransportError represents a failed or non-2xx backend exchange
type TransportError struct {
	Op     string // "list-tables", "run-analysis", "clean-report", ...
	Status int    // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport error [%s]", e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage is the generic text shown to users. It never carries backend detail.
func (e *TransportError) UserMessage() string {
	return "The analysis service could not be reached. Please try again."
}

// IsNotFound reports whether the backend answered 404
func (e *TransportError) IsNotFound() bool {
	return e.Status == 404
}

// StorageError represents errors accessing the persisted session store
type StorageError struct {
	Path string
	Op   string // "open", "get", "set", "delete"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
