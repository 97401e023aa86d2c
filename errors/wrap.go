package errors

import (
	"errors"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. If err is already an *Error,
// its code and category are preserved; otherwise the wrapper is an
// Internal error.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var envErr *Error
	if errors.As(err, &envErr) {
		wrapped := &Error{
			code:      envErr.code,
			category:  envErr.category,
			message:   message,
			cause:     err,
			metadata:  envErr.Metadata(),
			timestamp: envErr.timestamp,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	return New(CodeInternal, message, append(opts, WithCause(err))...)
}

// HasCode reports whether err or any error in its chain carries the
// given code.
func HasCode(err error, code ErrorCode) bool {
	var envErr *Error
	if errors.As(err, &envErr) {
		return envErr.code == code
	}
	return false
}

// CategoryOf returns the category of err, or CategoryInternal if err is
// not a structured envkit error.
func CategoryOf(err error) ErrorCategory {
	var envErr *Error
	if errors.As(err, &envErr) {
		return envErr.category
	}
	return CategoryInternal
}

// IsRetryable reports whether the failed operation may succeed on retry.
func IsRetryable(err error) bool {
	return CategoryOf(err).IsRetryable()
}

// Is re-exports errors.Is for callers that want a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As for callers that want a single import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
