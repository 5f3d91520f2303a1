package inventory

import (
	"errors"
	"fmt"
)

// Kind classifies an inventory error for retry and HTTP mapping decisions.
type Kind int

const (
	// KindAuth means the upstream rejected the token (401/403) or the
	// client was constructed without one.
	KindAuth Kind = iota
	// KindNotFound means the resource does not exist (404).
	KindNotFound
	// KindValidation means the upstream rejected the payload (400/422).
	KindValidation
	// KindUpstream means a 5xx response or a network failure. Retryable.
	KindUpstream
	// KindDecode means the response body could not be decoded.
	KindDecode
	// KindConfig means the base URL or client configuration is invalid.
	KindConfig
	// KindUnavailable means the circuit breaker is open and no cached
	// value could be served.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindDecode:
		return "decode"
	case KindConfig:
		return "config"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified inventory service error.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("inventory %s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("inventory %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("inventory %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the operation that produced this error may be
// retried. Only transient upstream failures qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstream
}

// IsRetryable reports whether err (or anything it wraps) is retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// KindOf extracts the Kind from err, or KindUpstream if err is not a
// classified inventory error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUpstream
}

// authError builds a KindAuth error.
func authError(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

// configError builds a KindConfig error.
func configError(msg string, err error) *Error {
	return &Error{Kind: KindConfig, Message: msg, Err: err}
}

// decodeError builds a KindDecode error.
func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Message: "decode response body", Err: err}
}

// networkError builds a retryable KindUpstream error from a transport failure.
func networkError(err error) *Error {
	return &Error{Kind: KindUpstream, Message: "network error", Err: err}
}

// unavailableError builds a KindUnavailable error for an open breaker with
// no cached fallback.
func unavailableError() *Error {
	return &Error{Kind: KindUnavailable, Message: "service unavailable (circuit breaker open)"}
}

// errorFromStatus maps an upstream HTTP status to a classified error.
func errorFromStatus(status int, body string) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Kind: KindAuth, StatusCode: status, Message: body}
	case status == 404:
		return &Error{Kind: KindNotFound, StatusCode: status, Message: body}
	case status == 400 || status == 422:
		return &Error{Kind: KindValidation, StatusCode: status, Message: body}
	default:
		return &Error{Kind: KindUpstream, StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, body)}
	}
}
