package biz

import (
	"errors"
	"fmt"
	"time"
)

// Error classification labels used in metrics and sync summaries.
const (
	ErrClassPermanentAuth = "permanent_auth"
	ErrClassRateLimited   = "rate_limited"
	ErrClassCircuitOpen   = "circuit_open"
	ErrClassTransient     = "transient"
	ErrClassAPI           = "api_error"
)

// PermanentAuthError means the tenant's refresh token was rejected by the
// identity provider. It is never retried; the tenant must re-authorize
// out-of-band.
type PermanentAuthError struct {
	TenantID string
	Reason   string
}

func (e *PermanentAuthError) Error() string {
	return fmt.Sprintf("permanent auth failure for tenant %s: %s", e.TenantID, e.Reason)
}

// TransientError covers network failures, timeouts and 5xx responses.
// It counts toward circuit breaker failures and is retried a bounded number
// of times.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}
	return fmt.Sprintf("transient failure: upstream returned HTTP %d", e.StatusCode)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is the fail-fast signal returned while a tenant's breaker
// is open. No network I/O was attempted.
type CircuitOpenError struct {
	TenantID string
	RetryAt  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for tenant %s until %s", e.TenantID, e.RetryAt.Format(time.RFC3339))
}

// RateLimitError is returned when 429 retries are exhausted. Within the
// pipeline it is absorbed via Retry-After waits and never surfaced unless
// retries run out.
type RateLimitError struct {
	TenantID   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for tenant %s (retry after %s)", e.TenantID, e.RetryAfter)
}

// APIError is a terminal non-retryable 4xx response from the marketplace.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// ClassifyError maps an error to its metrics/report classification.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var (
		authErr    *PermanentAuthError
		rateErr    *RateLimitError
		circuitErr *CircuitOpenError
		transErr   *TransientError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &authErr):
		return ErrClassPermanentAuth
	case errors.As(err, &rateErr):
		return ErrClassRateLimited
	case errors.As(err, &circuitErr):
		return ErrClassCircuitOpen
	case errors.As(err, &transErr):
		return ErrClassTransient
	case errors.As(err, &apiErr):
		return ErrClassAPI
	default:
		return "unknown"
	}
}
