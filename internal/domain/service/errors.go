package service

import (
	"errors"
	"fmt"
)

// The adapter layer distinguishes three failure signals so the cache/retry
// layer and the mode selector can react differently: network failures and
// rate limits are retryable, application errors trigger fast→deep fallback,
// validation errors fail the request outright.

// NetworkError is a transport-level failure (timeout, refused connection)
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitError is a provider throttle signal (HTTP 429 or equivalent).
// Kept distinct from NetworkError for observability even though the retry
// policy is the same.
type RateLimitError struct {
	Op string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited during %s", e.Op)
}

// ApplicationError is a structured failure code returned by a provider.
// Not retryable; the mode selector falls back to the deep path instead.
type ApplicationError struct {
	Op      string
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("provider error during %s [%d]: %s", e.Op, e.Code, e.Message)
}

// ValidationError is a malformed input; it fails fast with no retry
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsRetryable reports whether the retry layer may re-attempt the call
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var rlErr *RateLimitError
	return errors.As(err, &netErr) || errors.As(err, &rlErr)
}

// IsRateLimit reports whether the error is a provider throttle signal
func IsRateLimit(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// IsApplicationError reports whether the provider returned a structured
// failure; this is the trigger for fast→deep fallback
func IsApplicationError(err error) bool {
	var appErr *ApplicationError
	return errors.As(err, &appErr)
}
