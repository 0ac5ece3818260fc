package fabric

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode identifies a machine-stable retrieval error code.
type ErrorCode string

const (
	// ErrCodeEmbeddingUnavailable means the embedding provider failed or timed out.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeCatalogUnavailable means the catalog store failed or timed out.
	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	// ErrCodeInvalidCriteria marks a programming error upstream, such as a negative top_k.
	ErrCodeInvalidCriteria ErrorCode = "INVALID_CRITERIA"
	ErrCodeFabricNotFound  ErrorCode = "FABRIC_NOT_FOUND"
)

// Error captures a typed retrieval error with retryability metadata.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	cause     error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e == nil {
		return "fabric error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("fabric error: %s", e.Code)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause so callers can match context errors.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NewError constructs a typed retrieval error.
func NewError(code ErrorCode, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// wrapError attaches cause to a typed error.
func wrapError(code ErrorCode, cause error, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, cause: cause}
}

// AsError extracts a typed retrieval error from the error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether the error chain contains the given code.
func IsCode(err error, code ErrorCode) bool {
	if typed, ok := AsError(err); ok {
		return typed.Code == code
	}
	return false
}

// IsUnavailable reports whether err is an infrastructure failure rather than a business outcome.
func IsUnavailable(err error) bool {
	return IsCode(err, ErrCodeEmbeddingUnavailable) || IsCode(err, ErrCodeCatalogUnavailable)
}
