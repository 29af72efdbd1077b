package utils

import (
	"errors"
	"time"

	"railbooker/internal/errs"
)

// RetryPolicy is the shared backoff decision consulted by the booking state
// machine at every stage. It is a pure function of (error, attempt) so tests
// never need real delays.
type RetryPolicy struct {
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	MaxAttempts     int
	RateLimitFactor int // multiplier on BaseDelay for 429 responses
}

// Decide reports whether the failed call should be retried and how long to
// wait first. attempt is 1-based: the first failure passes attempt=1.
//
// Authentication rejections, configuration errors, and anything downstream
// of a confirm call are never retryable regardless of attempt count.
func (p RetryPolicy) Decide(err error, attempt int) (bool, time.Duration) {
	if attempt >= p.MaxAttempts {
		return false, 0
	}

	var (
		authErr    *errs.AuthenticationError
		cfgErr     *errs.ConfigurationError
		confirmErr *errs.ConfirmationError
		rateErr    *errs.RateLimitedError
		netErr     *errs.NetworkError
	)

	switch {
	case errors.As(err, &authErr), errors.As(err, &cfgErr), errors.As(err, &confirmErr):
		return false, 0

	case errors.As(err, &rateErr):
		delay := p.delayAt(attempt, p.BaseDelay*time.Duration(p.RateLimitFactor))
		if rateErr.RetryAfter > delay {
			delay = rateErr.RetryAfter
		}
		return true, delay

	case errors.As(err, &netErr):
		return true, p.delayAt(attempt, p.BaseDelay)

	default:
		return false, 0
	}
}

func (p RetryPolicy) delayAt(attempt int, base time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
