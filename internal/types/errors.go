package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoDate     = errors.New("no parseable publish date")
	ErrNoSnapshot = errors.New("driver returned empty snapshot")
)

// ExtractError wraps per-fragment extraction failures. These are
// recoverable: the controller skips the fragment and continues.
type ExtractError struct {
	Link  string
	Field string
	Err   error
}

func (e *ExtractError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extract error for %s (field=%s): %v", e.Link, e.Field, e.Err)
	}
	return fmt.Sprintf("extract error for %s: %v", e.Link, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// DriverError wraps browser-driver failures (navigation, render, eval).
// These are fatal to the run; the partial record set is still finalized.
type DriverError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error during %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

func (e *DriverError) IsRetryable() bool { return e.Retryable }

// StorageError wraps output-sink failures.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
