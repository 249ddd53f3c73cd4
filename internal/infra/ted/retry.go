package ted

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryPolicy controls how the client retries failed TED requests. A
// zero-delay policy can be substituted in tests.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
	// Retryable decides whether a failure is worth another attempt. It is
	// called with the HTTP status code, or with a non-nil transport error
	// (and status 0) when no response was received.
	Retryable func(statusCode int, err error) bool
}

// DefaultRetryPolicy retries rate limiting (429), upstream unavailability
// (503) and request timeouts, up to 3 attempts with exponential backoff
// between 2s and 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Retryable:   retryOnTransient,
	}
}

func retryOnTransient(statusCode int, err error) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

// Backoff returns the wait before the given retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < retry; i++ {
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
