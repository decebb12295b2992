package github

import (
	"errors"
	"fmt"
)

// RateLimitError means the call was not made (local budget below the
// low-water mark) or was rejected by GitHub for quota reasons. Callers must
// treat it as "could not determine", never as an empty result.
type RateLimitError struct {
	Endpoint  string
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s (remaining budget %d)", e.Endpoint, e.Remaining)
}

// APIError is a non-rate-limit API failure with the server message preserved
// for diagnostics.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API error on %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// MalformedResponseError means the response body was not well-formed JSON of
// the expected shape.
type MalformedResponseError struct {
	Endpoint string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
