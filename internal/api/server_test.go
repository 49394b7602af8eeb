package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/config"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/progress"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{}, nil, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ReadyzRequiresRun(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, nil, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, newFakeRun(), nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{AllowedOrigins: []string{"https://dash.example.com"}}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/progress", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec = httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, nil, nil).Handler().ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{}, nil, nil, nil)
	// One request first so the HTTP collectors have a series.
	server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_ProgressReportsLatestUpdate(t *testing.T) {
	t.Parallel()

	snapshot := progress.NewSnapshot()
	snapshot.Report("Processing Identifier: ABC123 (1/2)", 10)
	snapshot.Report("Processing ABC123: Searching - HTML fetched successfully.", 10)
	server := NewServer(config.ServerConfig{}, snapshot, newFakeRun(), nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got progressDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, stateRunning, got.State)
	require.Equal(t, "Processing ABC123: Searching - HTML fetched successfully.", got.Message)
	require.Equal(t, 10, got.Percent)
	require.EqualValues(t, 2, got.Updates)
}

func TestServer_ProgressWithoutRun(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, nil, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"state":"idle"`)
}

func TestServer_GetRunLifecycle(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	server := NewServer(config.ServerConfig{}, nil, run, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), stateRunning)

	run.finish(&pipeline.Result{
		RunID:   "run-1",
		Summary: pipeline.RunSummary{RunID: "run-1", Total: 2, Processed: 2, Succeeded: 1, Failed: 1},
	}, nil)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got runDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, stateFinished, got.State)
	require.NotNil(t, got.Summary)
	require.Equal(t, "run-1", got.Summary.RunID)
	require.Equal(t, 1, got.Summary.Succeeded)
	require.Empty(t, got.Error)
}

func TestServer_GetRunFailedAndMissing(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, nil, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	run := newFakeRun()
	run.finish(nil, errors.New("write output: disk full"))
	rec = httptest.NewRecorder()
	NewServer(config.ServerConfig{}, nil, run, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), stateFailed)
	require.Contains(t, rec.Body.String(), "disk full")
}

func TestServer_CancelRun(t *testing.T) {
	t.Parallel()

	run := newFakeRun()
	server := NewServer(config.ServerConfig{}, nil, run, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/run/cancel", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, run.canceled())

	run.finish(&pipeline.Result{RunID: "run-2"}, context.Canceled)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run", nil))
	require.Contains(t, rec.Body.String(), stateCanceled)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/run/cancel", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{}, nil, nil, nil)
	server.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_RunReportsListenError(t *testing.T) {
	t.Parallel()

	server := NewServer(config.ServerConfig{Addr: "256.0.0.1:bad"}, nil, nil, nil)
	err := server.Run(context.Background())
	require.Error(t, err)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	NewServer(config.ServerConfig{}, nil, nil, nil).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// --- helpers/fakes ---

type fakeRun struct {
	mu        sync.Mutex
	done      chan struct{}
	result    *pipeline.Result
	err       error
	cancelled bool
}

func newFakeRun() *fakeRun {
	return &fakeRun{done: make(chan struct{})}
}

func (r *fakeRun) Done() <-chan struct{} {
	return r.done
}

func (r *fakeRun) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

func (r *fakeRun) Wait() (*pipeline.Result, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *fakeRun) finish(result *pipeline.Result, err error) {
	r.mu.Lock()
	r.result, r.err = result, err
	r.mu.Unlock()
	close(r.done)
}

func (r *fakeRun) canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

