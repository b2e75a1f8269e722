// Package exception defines the error types raised by chunkbatch components.
//
// BatchError is the general wrapper used across modules. ResourceError, ParseError and
// WriteError form the step-level taxonomy: all three are fatal to the running step, and
// callers distinguish them with errors.As or the Is* helpers below. An item filtered by a
// processor is never reported as an error.
package exception

import (
	"errors"
	"fmt"
)

// BatchError is a module-tagged error wrapping an optional cause.
type BatchError struct {
	// Module names the component that raised the error (e.g. "chunk_step", "config").
	Module string
	// Message is a human-readable description.
	Message string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error

	isRetryable bool
	isSkippable bool
}

// NewBatchError creates a new BatchError.
//
// Parameters:
//
//	module: The component raising the error.
//	message: Description of the failure.
//	originalErr: The underlying cause, may be nil.
//	isSkippable: Whether the failing item could be skipped by an external policy.
//	isRetryable: Whether the operation could be retried by an external policy.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
	}
}

// NewBatchErrorf creates a non-retryable, non-skippable BatchError with a formatted message.
// If the last argument is an error it becomes OriginalErr and is not used for formatting.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if n := len(a); n > 0 {
		if err, ok := a[n-1].(error); ok {
			originalErr = err
			a = a[:n-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, a...), originalErr, false, false)
}

func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

func (e *BatchError) Unwrap() error { return e.OriginalErr }

// IsRetryable reports whether an external policy may retry the operation.
func (e *BatchError) IsRetryable() bool { return e.isRetryable }

// IsSkippable reports whether an external policy may skip the failing item.
func (e *BatchError) IsSkippable() bool { return e.isSkippable }

// IsBatchError reports whether err is, or wraps, a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// ErrOptimisticLockingFailure is returned when a versioned record was modified concurrently.
var ErrOptimisticLockingFailure = errors.New("optimistic locking failure")

// NewOptimisticLockingFailure wraps ErrOptimisticLockingFailure with module context.
func NewOptimisticLockingFailure(module, message string) *BatchError {
	return NewBatchError(module, message, ErrOptimisticLockingFailure, false, false)
}

// IsOptimisticLockingFailure reports whether err wraps ErrOptimisticLockingFailure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}
