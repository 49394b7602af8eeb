package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/product-scraper/internal/clock/system"
	"github.com/JakeFAU/product-scraper/internal/id/uuid"
	"github.com/JakeFAU/product-scraper/internal/metrics"
	"github.com/JakeFAU/product-scraper/internal/progress"
	"github.com/JakeFAU/product-scraper/internal/sheet"
)

// DefaultRowDelay paces row starts.
const DefaultRowDelay = 100 * time.Millisecond

// Progress phase ceilings.
const (
	searchPhasePercent     = 20
	extractionPhasePercent = 80
)

// Batch statuses used for metrics labels.
const (
	batchCompleted = "completed"
	batchCanceled  = "canceled"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Runner processes identifiers one row at a time in input order.
type Runner struct {
	pipeline *Pipeline
	rowDelay time.Duration
	ids      IDGenerator
	clock    Clock
	logger   *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRowDelay sets the minimum spacing between row starts. Zero disables pacing.
func WithRowDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.rowDelay = max(0, d)
	}
}

// WithIDGenerator overrides the run ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner builds a Runner around p.
func NewRunner(p *Pipeline, opts ...Option) *Runner {
	r := &Runner{
		pipeline: p,
		rowDelay: DefaultRowDelay,
		ids:      uuid.New(),
		clock:    system.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is a finished (or canceled) run.
type Result struct {
	RunID   string
	Table   *sheet.Table
	Rows    []ExtractedRow
	Summary RunSummary
}

// Process runs every identifier through the pipeline. Overall progress is
// 20*(i+1)/n when row i starts and 80*(i+1)/n once its product page has been
// fetched, clamped so it never decreases, and 100 at the end. When ctx ends
// the rows finished so far are returned with the context error.
func (r *Runner) Process(ctx context.Context, identifiers []string, rep progress.Reporter) ([]ExtractedRow, error) {
	tracker := progress.NewTracker(rep)
	total := len(identifiers)
	rows := make([]ExtractedRow, 0, total)

	var limiter *rate.Limiter
	if r.rowDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.rowDelay), 1)
	}

	succeeded := 0
	for i, id := range identifiers {
		if err := r.wait(ctx, limiter); err != nil {
			tracker.Status(fmt.Sprintf("Stopped after %d of %d identifiers.", i, total))
			return rows, fmt.Errorf("batch stopped after %d of %d rows: %w", i, total, err)
		}

		tracker.Report(fmt.Sprintf("Processing Identifier: %s (%d/%d)", id, i+1, total), searchPhasePercent*(i+1)/total)
		row := r.pipeline.Process(ctx, id, tracker)
		rows = append(rows, row)

		if row.Reached >= StateProductPageFetched {
			tracker.Report(row.Message(), extractionPhasePercent*(i+1)/total)
		} else {
			tracker.Status(row.Message())
		}
		if row.OK() {
			succeeded++
		}
	}

	tracker.Report(fmt.Sprintf("Extraction complete: %d of %d identifiers succeeded.", succeeded, total), 100)
	return rows, nil
}

func (r *Runner) wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// Run reads identifiers from the configured column of input, processes them,
// and returns the augmented table. A missing identifier column is a
// *ConfigError and nothing is fetched. On cancellation the partial result is
// returned together with the error.
func (r *Runner) Run(ctx context.Context, input *sheet.Table, rep progress.Reporter) (*Result, error) {
	cfg := r.pipeline.Config()
	cells, err := input.Column(cfg.IdentifierColumn)
	if err != nil {
		return nil, &ConfigError{
			Field:   "identifier_column",
			Message: fmt.Sprintf("column %q not found in input", cfg.IdentifierColumn),
			Err:     err,
		}
	}

	runID, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger := r.logger.With(zap.String("run_id", runID))
	started := r.clock.Now()

	identifiers := make([]string, len(cells))
	for i, c := range cells {
		identifiers[i] = c.Value
	}
	logger.Info("batch started", zap.Int("rows", len(identifiers)), zap.String("column", cfg.IdentifierColumn))

	rows, procErr := r.Process(ctx, identifiers, rep)

	table, err := BuildOutputTable(input, cfg, rows)
	if err != nil {
		return nil, fmt.Errorf("build output table: %w", err)
	}
	summary := Summarize(runID, len(identifiers), rows, started, r.clock.Now())
	summary.Canceled = procErr != nil

	status := batchCompleted
	if procErr != nil {
		status = batchCanceled
	}
	metrics.ObserveBatch(status)
	logger.Info("batch finished",
		zap.String("status", status),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("max_images", summary.MaxImages),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	return &Result{RunID: runID, Table: table, Rows: rows, Summary: summary}, procErr
}
