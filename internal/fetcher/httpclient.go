package fetcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"resty.dev/v3"
)

const (
	// defaultRequestTimeout bounds a single HTTP request; the coordinator's
	// per-item timeout bounds the whole fetch+store task
	defaultRequestTimeout = 20 * time.Second
)

// BrowserHeaders are sent by scrapers of pages that refuse non-browser clients
var BrowserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	"Accept":          "text/html,application/xhtml+xml",
	"Accept-Language": "en-US,en;q=0.5",
}

// NewHTTPClient creates a JSON HTTP client for a source.
// Retries are disabled: the coordinator decides whether a failed fetch is retried.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(defaultRequestTimeout).
		SetRetryCount(0)
}

// NewHTMLClient creates an HTTP client for scraping markup pages
func NewHTMLClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeaders(BrowserHeaders).
		SetTimeout(defaultRequestTimeout).
		SetRetryCount(0)
}

// CheckResponse turns the outcome of a resty request into a classified error.
// It returns nil when the request succeeded with a 2xx status.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ClassifyTransportError(err)
		}
		// A response with a success status means the body could not be decoded
		if resp != nil && resp.IsSuccess() {
			fe := NewUpstreamFormatError("failed to decode response: %v", err)
			fe.Cause = err
			return fe
		}
		return ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return ClassifyResponse(resp.StatusCode(), resp.Header())
	}
	return nil
}
