// Package exception provides custom error types and error handling utilities
// for the Hourglass batch application. It standardizes errors raised during
// pipeline processing so callers can distinguish configuration failures,
// which must stop a run before any data is written, from runtime failures.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// BatchError is a custom error type for failures during batch processing.
// It holds the module where the error occurred, a message, and the wrapped
// original error.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "config",
	// "stage", "repository", "storage").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBatchError creates a new BatchError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap, may be nil.
// Returns: A new BatchError instance.
func NewBatchError(module, message string, originalErr error) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError instance using a format string.
// If the last variadic argument is an error it is extracted and wrapped as
// the original error; the remaining arguments are passed to fmt.Sprintf.
//
// Example:
// NewBatchErrorf("storage", "failed to open %s", path, err)
// -> message: "failed to open <path>", originalErr: err
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// captureStack records the calling goroutine's stack for later debugging.
func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of
// the original error.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsBatchError determines if the given error is of type BatchError.
func IsBatchError(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	return errors.As(err, &be)
}

// ErrConfig is a sentinel error marking configuration failures: invalid
// dimension values, missing mapping columns, unparseable inputs, or an
// output location that already holds data. Configuration errors are fatal
// and must surface before any pipeline stage writes output.
var ErrConfig = errors.New("configuration error")

// ErrOutputExists is a sentinel error indicating the configured output
// location already contains data. The pipeline never overwrites an existing
// result; the operator must move or remove it first.
var ErrOutputExists = errors.New("output location already exists")

// ErrOptimisticLockingFailure is a sentinel error indicating an optimistic
// locking failure while persisting execution metadata.
var ErrOptimisticLockingFailure = errors.New("OptimisticLockingFailureException")

// NewConfigError creates a BatchError classified as a configuration failure.
// The returned error matches IsConfigError.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap, may be nil.
func NewConfigError(module, message string, originalErr error) *BatchError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrConfig, originalErr)
	} else {
		errToWrap = ErrConfig
	}
	return NewBatchError(module, message, errToWrap)
}

// NewConfigErrorf creates a configuration BatchError using a format string.
// Argument handling follows NewBatchErrorf.
func NewConfigErrorf(module, format string, a ...interface{}) *BatchError {
	be := NewBatchErrorf(module, format, a...)
	if be.OriginalErr != nil {
		be.OriginalErr = errors.Join(ErrConfig, be.OriginalErr)
	} else {
		be.OriginalErr = ErrConfig
	}
	return be
}

// NewOutputExistsError creates a configuration BatchError for an occupied
// output location. It matches both IsConfigError and IsOutputExists.
func NewOutputExistsError(module, location string) *BatchError {
	return NewBatchError(module,
		fmt.Sprintf("output location %q already contains data; refusing to overwrite", location),
		errors.Join(ErrConfig, ErrOutputExists))
}

// NewOptimisticLockingFailureException creates a BatchError indicating an
// optimistic locking failure. The returned error matches
// IsOptimisticLockingFailure.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	} else {
		errToWrap = ErrOptimisticLockingFailure
	}
	return NewBatchError(module, message, errToWrap)
}

// IsConfigError determines if an error is a configuration failure.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConfig)
}

// IsOutputExists determines if an error indicates an occupied output location.
func IsOutputExists(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOutputExists)
}

// IsOptimisticLockingFailure determines if an error indicates an optimistic
// locking failure.
func IsOptimisticLockingFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage extracts the error message string from an error.
// For BatchError, it returns the cleaner Message field.
// Otherwise, it returns the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
