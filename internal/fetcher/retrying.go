package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/metrics"
	"github.com/JakeFAU/product-scraper/internal/progress"
)

// Fetch outcomes used for metrics labels.
const (
	outcomeSuccess  = "success"
	outcomeStatus   = "http_status"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// Result is the outcome of a fetch with retries: raw HTML on success, or a
// failure carrying the last error.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Attempts   int
	Err        error
}

// OK reports whether HTML was retrieved.
func (r Result) OK() bool {
	return r.Err == nil
}

// Reason is the human-readable failure text, empty on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Retrying wraps a Fetcher with a RetryPolicy.
type Retrying struct {
	fetcher Fetcher
	policy  RetryPolicy
	logger  *zap.Logger
}

// NewRetrying builds a Retrying fetcher. A nil policy means DefaultPolicy.
func NewRetrying(f Fetcher, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{fetcher: f, policy: policy, logger: logger}
}

// Get fetches url, retrying per the policy. Progress is reported before each
// attempt, after success, and after every failed attempt. Cancellation of ctx
// ends the loop between attempts.
func (r *Retrying) Get(ctx context.Context, url string, rep progress.Reporter) Result {
	rep = progress.OrNop(rep)
	maxAttempts := r.policy.MaxAttempts()
	logger := r.logger.With(zap.String("url", url))

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		rep.Report(fmt.Sprintf("Fetching HTML from: %s (Attempt %d/%d)", url, attempt, maxAttempts), 20)

		start := time.Now()
		resp, err := r.fetcher.Fetch(ctx, url)
		metrics.ObserveFetchAttempt(url, attemptOutcome(err), time.Since(start))
		if err == nil {
			metrics.ObserveFetchResult(outcomeSuccess)
			rep.Report("HTML fetched successfully.", 40)
			logger.Debug("fetched page", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return Result{
				URL:        url,
				StatusCode: resp.StatusCode,
				Body:       resp.Body,
				Attempts:   attempt,
			}
		}

		lastErr = err
		logger.Warn("fetch attempt failed", zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts), zap.Error(err))
		rep.Report(fmt.Sprintf("Error fetching HTML from %s (Attempt %d/%d): %v", url, attempt, maxAttempts, err), 100)
		if !r.policy.ShouldRetry(err, attempt) {
			break
		}
		if err := sleep(ctx, r.policy.Backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	metrics.ObserveFetchResult(attemptOutcome(lastErr))
	res := Result{URL: url, Attempts: attempt, Err: lastErr}
	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		res.StatusCode = statusErr.StatusCode
	}
	return res
}

func attemptOutcome(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &statusErr):
		return outcomeStatus
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeError
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
