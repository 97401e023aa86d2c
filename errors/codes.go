package errors

// ErrorCategory classifies errors by their nature.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryProtocol indicates a data-driven condition reported through
	// the registry protocol itself.
	// Examples: a required global the server never advertised, a bind
	// rejected because the requested version exceeds the advertised one.
	CategoryProtocol ErrorCategory = "protocol"

	// CategoryTransport indicates a failure of the connection to the
	// server. Examples: a synchronization round that never completed,
	// a closed transport.
	CategoryTransport ErrorCategory = "transport"

	// CategoryUsage indicates a programmer error in how envkit was used.
	// Examples: a reentrant exclusive access, a duplicate slot
	// declaration. Never retryable.
	CategoryUsage ErrorCategory = "usage"

	// CategoryInternal indicates unexpected errors or invariant
	// violations inside envkit itself.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransport
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for envkit failure scenarios.
const (
	// Protocol conditions
	CodeMissingGlobal ErrorCode = "MISSING_GLOBAL" // required global never advertised
	CodeBindFailed    ErrorCode = "BIND_FAILED"    // server rejected a bind

	// Transport failures
	CodeSyncFailed      ErrorCode = "SYNC_FAILED"      // synchronization round failed
	CodeTransportClosed ErrorCode = "TRANSPORT_CLOSED" // operation on a closed transport

	// Usage errors
	CodeInvalidDeclaration ErrorCode = "INVALID_DECLARATION" // malformed slot declaration
	CodeReentrantAccess    ErrorCode = "REENTRANT_ACCESS"    // exclusive window taken twice

	// Internal
	CodeInternal ErrorCode = "INTERNAL" // unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case CodeMissingGlobal, CodeBindFailed:
		return CategoryProtocol
	case CodeSyncFailed, CodeTransportClosed:
		return CategoryTransport
	case CodeInvalidDeclaration, CodeReentrantAccess:
		return CategoryUsage
	default:
		return CategoryInternal
	}
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	CodeMissingGlobal:      "a required global is missing",
	CodeBindFailed:         "bind rejected by server",
	CodeSyncFailed:         "synchronization round failed",
	CodeTransportClosed:    "transport is closed",
	CodeInvalidDeclaration: "invalid environment declaration",
	CodeReentrantAccess:    "reentrant exclusive access",
	CodeInternal:           "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
