package providers

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrProviderCall matches every *CallError.
	ErrProviderCall = errors.New("provider call failed")

	// ErrAuth matches *AuthError.
	ErrAuth = errors.New("provider authentication failed")

	// ErrRateLimited matches *RateLimitError.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrTimeout matches *TimeoutError.
	ErrTimeout = errors.New("provider request timeout")
)

// Stage names the step of an attempt that failed.
type Stage string

const (
	StageRender    Stage = "render"
	StageTransport Stage = "transport"
	StageStatus    Stage = "status"
	StageDecode    Stage = "decode"
	StageExtract   Stage = "extract"
	StageKeys      Stage = "keys"
)

// CallError is the failure of one provider attempt. It wraps the typed
// cause and, when the provider answered, the raw response body.
type CallError struct {
	// Provider is the name of the provider that failed.
	Provider string

	// Stage is the step that failed.
	Stage Stage

	// KeyIndex is the position of the candidate key in the selector
	// output, or -1 when no key was involved. The key itself is never kept.
	KeyIndex int

	// StatusCode is the HTTP status code (0 if no response was received).
	StatusCode int

	// RawBody is the raw response body, if any.
	RawBody string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q %s failed (status %d): %v", e.Provider, e.Stage, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %q %s failed: %v", e.Provider, e.Stage, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *CallError) Is(target error) bool {
	return target == ErrProviderCall
}

// StatusError is a non-2xx response other than auth and rate limit
// failures.
type StatusError struct {
	// Provider is the name of the provider that returned the status
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the response body
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %q returned status %d: %s", e.Provider, e.StatusCode, truncate(e.Message))
}

// AuthError represents an authentication failure (HTTP 401 or 403).
type AuthError struct {
	// Provider is the name of the provider that rejected authentication
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, truncate(e.Message))
}

// Is implements error matching for errors.Is().
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if provided by the provider.
type RateLimitError struct {
	// Provider is the name of the provider that rate limited the request
	Provider string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, truncate(e.Message))
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, truncate(e.Message))
}

// Is implements error matching for errors.Is().
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// TimeoutError represents an attempt that exceeded the provider timeout.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// Is implements error matching for errors.Is().
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ParseError represents a response body that is not JSON.
type ParseError struct {
	// Provider is the name of the provider that returned the malformed response
	Provider string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

const maxMessageLen = 256

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
