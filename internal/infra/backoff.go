package infra

import (
	"time"
)

const (
	// Standard backoff constants
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
)

// Backoff is an exponential reconnect delay policy.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the stream reconnect policy (500ms doubling, capped at 30s).
func DefaultBackoff() Backoff {
	return Backoff{Base: defaultBaseDelay, Max: defaultMaxDelay}
}

// Duration returns the delay before retry number retryCount.
// Logic: Base * 2^retryCount, capped at Max.
// If retryCount is negative, it returns Base.
func (b Backoff) Duration(retryCount int) time.Duration {
	base, ceiling := b.Base, b.Max
	if base <= 0 {
		base = defaultBaseDelay
	}
	if ceiling < base {
		ceiling = base
	}

	if retryCount < 0 {
		return base
	}

	// 2^30 * base already exceeds any sane cap; stop shifting before overflow.
	if retryCount > 30 {
		return ceiling
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > ceiling || backoff <= 0 {
		return ceiling
	}

	return backoff
}

// CalculateBackoff returns the delay of the default policy.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff().Duration(retryCount)
}
