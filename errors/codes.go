package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Lifecycle errors
const (
	// ErrCodeConnectorClosed indicates an iterator was requested from a closed connector.
	ErrCodeConnectorClosed ErrorCode = "CONNECTOR_CLOSED"
	// ErrCodeCanceled indicates an operation was abandoned by its caller.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates an argument is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidConfig indicates a configuration struct failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInvalidSelector indicates a publish selector produced no pipeline.
	ErrCodeInvalidSelector ErrorCode = "INVALID_SELECTOR"
)

// Internal errors
const (
	// ErrCodeInternal indicates a broken invariant inside the library.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeUpstream indicates a transient failure reported by an upstream source.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeUpstream: true,
	ErrCodeInternal: false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
