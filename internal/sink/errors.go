package sink

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind represents the category of a storage failure
type Kind string

const (
	// KindUnavailable indicates the backend could not be reached or failed transiently
	KindUnavailable Kind = "unavailable"
	// KindPermissionDenied indicates the credentials do not allow the write
	KindPermissionDenied Kind = "permission_denied"
	// KindInvalidPayload indicates the payload or key was rejected
	KindInvalidPayload Kind = "invalid_payload"
)

// SinkError represents a classified error from a store operation
type SinkError struct {
	Kind    Kind
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *SinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error storing %q: %s: %v", e.Kind, e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error storing %q: %s", e.Kind, e.Key, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SinkError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError creates an error for an unreachable backend
func NewUnavailableError(key string, cause error) *SinkError {
	return &SinkError{Kind: KindUnavailable, Key: key, Message: "backend unavailable", Cause: cause}
}

// NewPermissionDeniedError creates an error for a rejected write
func NewPermissionDeniedError(key string, cause error) *SinkError {
	return &SinkError{Kind: KindPermissionDenied, Key: key, Message: "permission denied", Cause: cause}
}

// NewInvalidPayloadError creates an error for a payload or key the backend cannot accept
func NewInvalidPayloadError(key, message string, cause error) *SinkError {
	return &SinkError{Kind: KindInvalidPayload, Key: key, Message: message, Cause: cause}
}

// KindOf returns the kind of err. Unclassified errors are reported as unavailable.
func KindOf(err error) Kind {
	var se *SinkError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}
