package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is the structured error type used throughout envkit.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	timestamp time.Time
}

// Ensure Error implements error and json.Marshaler.
var (
	_ error          = (*Error)(nil)
	_ json.Marshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether the failed operation may succeed on retry.
func (e *Error) Retryable() bool {
	return e.category.IsRetryable()
}

// Metadata returns the error metadata.
func (e *Error) Metadata() map[string]string {
	if e.metadata == nil {
		return make(map[string]string)
	}
	// Return a copy to prevent modification
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// errorJSON is the JSON representation of an Error.
type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Retryable: e.Retryable(),
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// MissingGlobal reports that a global the application requires was never
// advertised by the server. The interface name is recorded in the
// metadata under "interface".
func MissingGlobal(iface string, opts ...Option) *Error {
	opts = append([]Option{WithMetadata("interface", iface)}, opts...)
	return New(CodeMissingGlobal, fmt.Sprintf("a required global is missing: %s", iface), opts...)
}

// BindFailed reports a bind rejected by the server.
func BindFailed(iface string, id uint32, cause error) *Error {
	return New(CodeBindFailed,
		fmt.Sprintf("binding %s (id %d) failed", iface, id),
		WithMetadata("interface", iface),
		WithMetadata("id", fmt.Sprintf("%d", id)),
		WithCause(cause),
	)
}

// SyncFailed reports a failed synchronization round.
func SyncFailed(round int, cause error) *Error {
	return New(CodeSyncFailed,
		fmt.Sprintf("synchronization round %d failed", round),
		WithMetadata("round", fmt.Sprintf("%d", round)),
		WithCause(cause),
	)
}

// InvalidDeclaration reports a malformed slot declaration.
func InvalidDeclaration(message string, opts ...Option) *Error {
	return New(CodeInvalidDeclaration, message, opts...)
}

// ReentrantAccess reports an exclusive-access discipline violation.
// The offending operation is recorded in the metadata under "op".
func ReentrantAccess(op string) *Error {
	return New(CodeReentrantAccess,
		fmt.Sprintf("reentrant exclusive access from %s: the environment state is already borrowed", op),
		WithMetadata("op", op),
	)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(CodeInternal, message, opts...)
}
