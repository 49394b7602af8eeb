// Package metrics exposes Prometheus collectors for the product scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal       *prometheus.CounterVec
	fetchResultsTotal        *prometheus.CounterVec
	fetchDurationSeconds     *prometheus.HistogramVec
	rowsTotal                *prometheus.CounterVec
	rowDurationSeconds       prometheus.Histogram
	selectorEvaluationsTotal *prometheus.CounterVec
	imagesExtractedTotal     prometheus.Counter
	batchesTotal             *prometheus.CounterVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	rateLimitDelaySeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_attempts_total",
				Help: "Total number of HTTP fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_results_total",
				Help: "Total number of fetches after retries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of single fetch attempt latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"site"},
		)

		rowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rows_total",
				Help: "Total number of identifiers processed, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		rowDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_row_duration_seconds",
				Help:    "Histogram of end-to-end row pipeline durations.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		selectorEvaluationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_selector_evaluations_total",
				Help: "Total number of selector evaluations, labeled by selector kind and result.",
			},
			[]string{"kind", "result"},
		)

		imagesExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_images_extracted_total",
				Help: "Total number of image links extracted.",
			},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_batches_total",
				Help: "Total number of batches run, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt records one HTTP attempt and its latency.
func ObserveFetchAttempt(rawURL, outcome string, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveFetchResult records the outcome of a fetch after all retries.
func ObserveFetchResult(outcome string) {
	Init()
	fetchResultsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRow records a finished row.
func ObserveRow(outcome string, duration time.Duration, images int) {
	Init()
	rowsTotal.WithLabelValues(outcome).Inc()
	rowDurationSeconds.Observe(duration.Seconds())
	if images > 0 {
		imagesExtractedTotal.Add(float64(images))
	}
}

// ObserveSelector records a selector evaluation result (match, miss, error, invalid_kind).
func ObserveSelector(kind, result string) {
	Init()
	selectorEvaluationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveBatch records a finished batch.
func ObserveBatch(status string) {
	Init()
	batchesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records metrics for a request served by the API.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a request waited for its host's token.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}
