package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrInvalidTransition  = "INVALID_TRANSITION"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendError       = "BACKEND_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// ErrorEnvelope is the standard error response body returned by the gateway.
// It implements the error interface. Reason carries the short human-readable
// label serialized under "error"; Message carries the detail.
type ErrorEnvelope struct {
	Reason  string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Bad request", Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Unauthorized", Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Not found", Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Conflict", Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with a human-readable reason.
func NewValidationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Validation failed", Code: ErrValidationError, Message: msg}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Invalid transition", Code: ErrInvalidTransition, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError(msg string) *ErrorEnvelope {
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	return &ErrorEnvelope{Reason: "Internal error", Code: ErrInternalError, Message: msg}
}

// NewUpstreamError returns a BACKEND_ERROR for inventory failures that
// survived the retry loop.
func NewUpstreamError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Reason: "Upstream error", Code: ErrBackendError, Message: msg}
}

// NewUnavailableError returns a BACKEND_UNAVAILABLE error, used when the
// circuit breaker is open and no cached fallback exists.
func NewUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Reason:  "Service unavailable",
		Code:    ErrBackendUnavailable,
		Message: "The inventory service is temporarily unavailable",
	}
}
