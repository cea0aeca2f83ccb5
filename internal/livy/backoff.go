package livy

import (
	"math"
	"time"
)

// RetryPolicy bounds retry behavior for one dispatched request.
//
// MaxRetries counts retries after the initial attempt; zero disables
// retrying. BackoffBase is the exponent base in seconds for the delay
// before retry N, computed as BackoffBase^N.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase float64
}

// DefaultRetryPolicy mirrors the service defaults: three retries with
// powers-of-two backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffBase: 2.0}
}

// WithDefaults replaces a zero-valued policy with DefaultRetryPolicy and
// normalizes a missing backoff base. A policy with an explicit base but
// MaxRetries zero keeps retrying disabled.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	if p.MaxRetries <= 0 && p.BackoffBase <= 0 {
		return DefaultRetryPolicy()
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultRetryPolicy().BackoffBase
	}
	return p
}

// NextBackoffDelay returns the delay before retry N (1-based).
func NextBackoffDelay(p RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BackoffBase
	if base <= 0 {
		base = DefaultRetryPolicy().BackoffBase
	}
	seconds := math.Pow(base, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}
