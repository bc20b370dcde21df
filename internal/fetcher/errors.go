package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind represents the category of error that occurred during a fetch operation
type Kind string

const (
	// KindNetwork indicates a transient transport failure: connection refused,
	// DNS, timeouts, or a server error (HTTP 5xx / 408)
	KindNetwork Kind = "network"
	// KindUpstreamFormat indicates the response arrived but did not have the
	// expected structure, e.g. the page layout changed or the request was rejected
	KindUpstreamFormat Kind = "upstream_format"
	// KindRateLimited indicates the source explicitly throttled the request
	KindRateLimited Kind = "rate_limited"
	// KindUnknown is used for errors that were not classified by the fetcher
	KindUnknown Kind = "unknown"
)

// FetchError represents a classified error from a fetch operation
type FetchError struct {
	Kind       Kind
	StatusCode int
	Message    string
	// RetryAfter is the delay the source asked for, if it sent one
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Kind:    KindNetwork,
		Message: "network request failed",
		Cause:   cause,
	}
}

// NewTimeoutError creates a network error for an expired deadline
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Kind:    KindNetwork,
		Message: "timeout",
		Cause:   cause,
	}
}

// NewServerError creates a network error for a failing upstream server
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Kind:       KindNetwork,
		StatusCode: statusCode,
		Message:    "server returned an error",
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int, retryAfter time.Duration) *FetchError {
	return &FetchError{
		Kind:       KindRateLimited,
		StatusCode: statusCode,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// NewUpstreamFormatError creates an error for a response that did not have the expected shape
func NewUpstreamFormatError(format string, args ...any) *FetchError {
	return &FetchError{
		Kind:    KindUpstreamFormat,
		Message: fmt.Sprintf(format, args...),
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode, 0)
	case statusCode == http.StatusRequestTimeout:
		return &FetchError{Kind: KindNetwork, StatusCode: statusCode, Message: "request timed out"}
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return &FetchError{
			Kind:       KindUpstreamFormat,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("client error: HTTP %d", statusCode),
		}
	default:
		return &FetchError{
			Kind:       KindUnknown,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// ClassifyResponse classifies a non-success HTTP response, honouring a
// Retry-After header (in seconds) on throttled responses
func ClassifyResponse(statusCode int, header http.Header) *FetchError {
	fe := ClassifyHTTPError(statusCode)
	if fe.Kind == KindRateLimited && header != nil {
		if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
			fe.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return fe
}

// ClassifyTransportError classifies an error returned by the HTTP client
// before any response was received
func ClassifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// KindOf returns the kind of err, or KindUnknown when err carries no FetchError
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
