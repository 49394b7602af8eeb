// Package fetcher retrieves raw HTML for a URL. A Fetcher performs one GET; the
// Retrying wrapper layers a RetryPolicy and progress reporting on top and never
// returns an error past its own boundary.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultUserAgent is the browser-identifying header sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 15 * time.Second

// Config controls outbound requests.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// InsecureSkipVerify disables TLS certificate verification. Off unless set.
	InsecureSkipVerify bool
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Response is a completed 2xx fetch.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher performs a single GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}
