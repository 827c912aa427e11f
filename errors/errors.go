package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error type raised by seqkit itself.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if restarting the failed iteration can succeed.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// ConnectorClosed reports use of a multicast connector after Close.
func ConnectorClosed(connectorID string) *AppError {
	return &AppError{
		Code: ErrCodeConnectorClosed, Message: "multicast connector is closed",
		Details: map[string]any{"connector_id": connectorID},
	}
}

// InvalidSelector reports a publish selector that could not build its inner pipeline.
func InvalidSelector(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidSelector, Message: fmt.Sprintf("invalid selector: %s", reason),
	}
}

// InvalidInput reports an invalid argument.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// InvalidConfig reports a configuration struct that failed validation.
func InvalidConfig(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfig, Message: message}
}

// Upstream wraps a transient source failure so that retry policies restart it.
func Upstream(source string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUpstream, Message: fmt.Sprintf("upstream %s failed", source),
		Retryable: true, Details: map[string]any{"source": source}, Cause: cause,
	}
}

// Internal reports a broken library invariant.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected internal error occurred", Cause: cause,
	}
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err, or any error it wraps, is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
