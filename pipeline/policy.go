package pipeline

import (
	"errors"
	"math/rand"
	"time"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate when a policy's
// fields are inconsistent.
var ErrInvalidRetryPolicy = errors.New("pipeline: invalid retry policy")

// RetryPolicy configures the bounded exponential-jitter backoff a Node
// applies between failed attempts of its processing function. The default
// policy every Node gets (DefaultRetryPolicy) makes five total attempts
// with a ten-second delay cap, matching the processing-function retry
// contract every node honors regardless of its other options.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Must be >= 1.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between
	// attempts. The delay before attempt n (n >= 1, zero-based) is
	// min(BaseDelay*2^(n-1), MaxDelay) plus jitter in [0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential component. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the five-attempt, ten-second-cap policy every
// Node uses unless overridden.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Validate reports whether the policy's fields are internally consistent.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// computeBackoff returns the delay before retry attempt n (zero-based: 0 is
// the first retry, following the initial attempt). rng may be nil, in which
// case the package-level default source is used; tests that need
// determinism should pass their own *rand.Rand.
func computeBackoff(n int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base * (1 << n)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}
