package errors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a wrapper around errno codes, with a customizable error message.
//
// Two DriverErrors are considered the same error by [errors.Is] if they carry
// the same errno code, so callers can test against the sentinel values
// (ErrNotFound, ErrIOFailed, ...) regardless of the message attached.
type DriverError interface {
	error
	Errno() Errno
	Unwrap() error
	WithMessage(message string) DriverError
}

type driverError struct {
	errno         Errno
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e *driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.errno)
}

func (e *driverError) Errno() Errno {
	return e.errno
}

func (e *driverError) Unwrap() error {
	return e.originalError
}

// Is reports whether `target` is a DriverError with the same errno code.
func (e *driverError) Is(target error) bool {
	other, ok := target.(DriverError)
	return ok && other.Errno() == e.errno
}

// WithMessage returns a copy of the error with `message` appended to the
// current message. The errno code is preserved.
func (e *driverError) WithMessage(message string) DriverError {
	return &driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e.originalError,
	}
}

// New creates a new [DriverError] with a default message derived from the
// errno code.
func New(errnoCode Errno) DriverError {
	return &driverError{
		errno:   errnoCode,
		message: StrError(errnoCode),
	}
}

// NewWithMessage creates a new DriverError from an errno code with a custom
// message.
func NewWithMessage(errnoCode Errno, message string) DriverError {
	return &driverError{
		errno:   errnoCode,
		message: fmt.Sprintf("%s: %s", StrError(errnoCode), message),
	}
}

// NewFromError creates a DriverError for `errnoCode` caused by `originalError`.
// Both the errno sentinel and the original error remain reachable through
// [errors.Is] and [errors.As].
func NewFromError(errnoCode Errno, originalError error) DriverError {
	return &driverError{
		errno:         errnoCode,
		message:       fmt.Sprintf("%s: %s", StrError(errnoCode), originalError.Error()),
		originalError: multierror.Append(New(errnoCode), originalError),
	}
}

// Wrap attaches a cause to an existing DriverError, keeping its errno code and
// message as a prefix.
func Wrap(err DriverError, cause error) DriverError {
	return &driverError{
		errno:         err.Errno(),
		message:       fmt.Sprintf("%s: %s", err.Error(), cause.Error()),
		originalError: multierror.Append(err, cause),
	}
}
