package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/JakeFAU/product-scraper/internal/pipeline"
)

// Run states reported by the progress and run endpoints.
const (
	stateIdle     = "idle"
	stateRunning  = "running"
	stateFinished = "finished"
	stateCanceled = "canceled"
	stateFailed   = "failed"
)

type progressDTO struct {
	State   string    `json:"state"`
	Message string    `json:"message"`
	Percent int       `json:"percent"`
	At      time.Time `json:"at"`
	Updates int64     `json:"updates"`
}

type runDTO struct {
	State   string               `json:"state"`
	Summary *pipeline.RunSummary `json:"summary,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// getProgress handles GET /v1/progress. It always answers 200 with the most
// recent update, which is zero-valued before the first report.
func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	latest, count := s.snapshot.Latest()
	state, _, _ := s.runState()
	writeJSON(w, http.StatusOK, progressDTO{
		State:   state,
		Message: latest.Message,
		Percent: latest.Percent,
		At:      latest.At,
		Updates: count,
	})
}

// getRun handles GET /v1/run. It answers 202 while the batch is running, 200
// with the summary once it has ended, and 404 when no run is attached.
func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	state, result, err := s.runState()
	switch state {
	case stateIdle:
		writeError(w, http.StatusNotFound, "no run attached")
		return
	case stateRunning:
		writeJSON(w, http.StatusAccepted, runDTO{State: state})
		return
	}
	dto := runDTO{State: state}
	if result != nil {
		dto.Summary = &result.Summary
	}
	if err != nil {
		dto.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// cancelRun handles POST /v1/run/cancel. Cancellation takes effect between
// rows and between fetch attempts; 409 means the run had already ended.
func (s *Server) cancelRun(w http.ResponseWriter, _ *http.Request) {
	state, _, _ := s.runState()
	switch state {
	case stateIdle:
		writeError(w, http.StatusNotFound, "no run attached")
	case stateRunning:
		s.run.Cancel()
		s.logger.Info("run cancel requested via API")
		writeJSON(w, http.StatusAccepted, runDTO{State: "canceling"})
	default:
		writeError(w, http.StatusConflict, "run already "+state)
	}
}

func (s *Server) runState() (string, *pipeline.Result, error) {
	if s.run == nil {
		return stateIdle, nil, nil
	}
	select {
	case <-s.run.Done():
	default:
		return stateRunning, nil, nil
	}
	result, err := s.run.Wait()
	switch {
	case err == nil:
		return stateFinished, result, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stateCanceled, result, err
	default:
		return stateFailed, result, err
	}
}
