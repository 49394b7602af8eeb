package fetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Defaults for the fixed policy.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// RetryPolicy decides how many attempts a fetch gets and how long to wait
// between them. Attempts are numbered from 1.
type RetryPolicy interface {
	MaxAttempts() int
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// FixedPolicy waits the same delay between every attempt.
type FixedPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy is three attempts five seconds apart.
func DefaultPolicy() FixedPolicy {
	return FixedPolicy{Attempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// NoDelay returns a policy with the given attempts and no waiting.
func NoDelay(attempts int) FixedPolicy {
	return FixedPolicy{Attempts: attempts}
}

// MaxAttempts implements RetryPolicy.
func (p FixedPolicy) MaxAttempts() int {
	return max(1, p.Attempts)
}

// ShouldRetry implements RetryPolicy.
func (p FixedPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err) && attempt < p.MaxAttempts()
}

// Backoff implements RetryPolicy.
func (p FixedPolicy) Backoff(int) time.Duration {
	return max(0, p.Delay)
}

// ExponentialPolicy doubles the delay each attempt, capped at MaxDelay, with
// jitter over the upper half.
type ExponentialPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewExponentialPolicy builds a policy with sane defaults.
func NewExponentialPolicy() ExponentialPolicy {
	return ExponentialPolicy{
		Attempts:  DefaultMaxAttempts,
		BaseDelay: 250 * time.Millisecond,
		MaxDelay:  DefaultRetryDelay,
	}
}

// MaxAttempts implements RetryPolicy.
func (p ExponentialPolicy) MaxAttempts() int {
	return max(1, p.Attempts)
}

// ShouldRetry implements RetryPolicy.
func (p ExponentialPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err) && attempt < p.MaxAttempts()
}

// Backoff implements RetryPolicy.
func (p ExponentialPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(max(0, attempt-1)))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// retryable treats every failure as transient except cancellation.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
