package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gh "github.com/google/go-github/v57/github"
)

// APIError represents a GitHub API error response
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is set for secondary rate limit responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("GitHub API error (status %d)", e.StatusCode)
}

// IsNotFoundError returns true if the error is a not found error
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRateLimitError returns true for primary and secondary rate limit errors.
func IsRateLimitError(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusTooManyRequests || apiErr.RetryAfter > 0)
}

// IsRetryable reports whether a failed request may succeed when repeated.
// Server errors, secondary rate limits and network failures are transient.
// An exhausted primary rate limit is not: it only clears at the reset time.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrRateLimited) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.RetryAfter > 0
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// wrapError converts go-github error types into *APIError.
func wrapError(err error) error {
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		apiErr := &APIError{StatusCode: http.StatusForbidden, Message: abuse.Message, RetryAfter: time.Minute}
		if abuse.RetryAfter != nil {
			apiErr.RetryAfter = *abuse.RetryAfter
		}
		return apiErr
	}

	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Errorf("%w: resets at %s", ErrRateLimited, rle.Rate.Reset.Time.Format(time.RFC3339))
	}

	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		return &APIError{StatusCode: resp.Response.StatusCode, Message: resp.Message}
	}

	return err
}
