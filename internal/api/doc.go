// Package api hosts the HTTP surface of the serve command. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the latest progress update of the running batch.
//   - GET /v1/run for the run summary, and POST /v1/run/cancel to stop it.
package api
