package runbeam

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes SDK errors for metrics and logging.
type ErrorCode string

const (
	ErrCodeConfig     ErrorCode = "CONFIG"     // Configuration errors
	ErrCodeValidation ErrorCode = "VALIDATION" // Request validation errors
	ErrCodeNetwork    ErrorCode = "NETWORK"    // Network/connection errors
	ErrCodeAPI        ErrorCode = "API"        // API response errors
	ErrCodeAuth       ErrorCode = "AUTH"       // Authentication errors
	ErrCodeRateLimit  ErrorCode = "RATE_LIMIT" // Rate limiting errors
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Internal SDK errors
)

// Sentinel errors for configuration and request validation. These are
// raised synchronously at the call site; transport failures, by
// contrast, only ever surface inside the background worker.
var (
	ErrMissingAPIKey  = errors.New("runbeam: API key is required")
	ErrMissingBaseURL = errors.New("runbeam: base URL is required")
	ErrInvalidConfig  = errors.New("runbeam: invalid configuration")
	ErrNilConfig      = errors.New("runbeam: config cannot be nil")
	ErrNilRun         = errors.New("runbeam: run cannot be nil")
	ErrNilRequest     = errors.New("runbeam: request cannot be nil")
)

// Sentinel APIError values for use with errors.Is. They match on status
// code only.
var (
	ErrNotFound     = &APIError{StatusCode: 404}
	ErrUnauthorized = &APIError{StatusCode: 401}
	ErrForbidden    = &APIError{StatusCode: 403}
	ErrRateLimited  = &APIError{StatusCode: 429}
)

// APIError represents an error response from the Runbeam API. It
// supports wrapping via Unwrap and comparison via Is.
type APIError struct {
	StatusCode int           `json:"statusCode"`
	Message    string        `json:"message"`
	RequestID  string        `json:"-"` // Server request ID for debugging
	RetryAfter time.Duration `json:"-"` // From the Retry-After header
	Err        error         `json:"-"` // Underlying error for wrapping
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.RequestID != "" {
		return fmt.Sprintf("runbeam: API error %d: %s (request %s)", e.StatusCode, msg, e.RequestID)
	}
	return fmt.Sprintf("runbeam: API error %d: %s", e.StatusCode, msg)
}

// Unwrap returns the underlying error, if any.
func (e *APIError) Unwrap() error { return e.Err }

// Is matches APIErrors on status code, so sentinel values like
// ErrNotFound compare correctly through errors.Is.
func (e *APIError) Is(target error) bool {
	var apiErr *APIError
	if !errors.As(target, &apiErr) {
		return false
	}
	return e.StatusCode == apiErr.StatusCode
}

// Code returns the machine-readable category of the error.
func (e *APIError) Code() ErrorCode {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return ErrCodeAuth
	case e.StatusCode == 429:
		return ErrCodeRateLimit
	case e.StatusCode >= 500:
		return ErrCodeAPI
	case e.StatusCode >= 400:
		return ErrCodeValidation
	default:
		return ErrCodeNetwork
	}
}

// IsRetryable reports whether the request that produced the error may
// be retried: rate limiting and server-side failures qualify, client
// errors do not.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500 || e.StatusCode == 0
}

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRetryable reports whether err represents a retryable condition,
// regardless of its concrete type. Non-API errors (network failures)
// are considered retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.IsRetryable()
	}
	return true
}

// RetryAfter returns how long to wait before retrying, honoring the
// server's Retry-After header when present.
func RetryAfter(err error) time.Duration {
	if apiErr, ok := AsAPIError(err); ok && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return 0
}
