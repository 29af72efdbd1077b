// Package errs defines the error kinds the booking engine dispatches on.
// Stage handlers match these with errors.As; anything else propagates
// unchanged to the top of the state machine.
package errs

import (
	"fmt"
	"time"
)

// ConfigurationError reports invalid input shape, e.g. passenger arrays of
// unequal length. Fatal, surfaced before the engine starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// AuthenticationError means the remote service rejected the credentials.
// Never retried: credentials do not become valid by retrying.
type AuthenticationError struct {
	Detail string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Detail)
}

// NetworkError wraps a transport-level failure (timeout, connection reset,
// unexpected 5xx). Transient: retried per the backoff policy.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitedError is the HTTP 429 case. Transient like NetworkError but
// retried with a larger initial backoff; RetryAfter is zero when the
// response carried no Retry-After header.
type RateLimitedError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited by remote service", e.Op)
}

// TripNotFoundError means the configured 1-based trip index was out of
// range of the search result. Clean failure, not retried.
type TripNotFoundError struct {
	Index int
	Found int
}

func (e *TripNotFoundError) Error() string {
	return fmt.Sprintf("trip #%d not found (%d trips returned)", e.Index, e.Found)
}

// InsufficientSeatsError means the layout snapshot did not hold enough
// available seats of the requested class.
type InsufficientSeatsError struct {
	Class string
	Want  int
	Have  int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("need %d %s seat(s), only %d available", e.Want, e.Class, e.Have)
}

// SeatConflictError means another client locked one of the selected seats
// first. Retried with a fresh layout fetch, bounded attempts.
type SeatConflictError struct {
	Detail string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seat conflict: %s", e.Detail)
}

// ConfirmationError is any failure after seats were locked and the confirm
// call was issued. Always fatal, never retried: a half-confirmed purchase
// silently retried could double-book. Detail keeps the last remote response
// for manual reconciliation.
type ConfirmationError struct {
	LockID string
	Detail string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirmation failed for lock %s: %s", e.LockID, e.Detail)
}
