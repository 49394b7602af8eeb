package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/clock/system"
	"github.com/JakeFAU/product-scraper/internal/extract"
	"github.com/JakeFAU/product-scraper/internal/fetcher"
	"github.com/JakeFAU/product-scraper/internal/metrics"
	"github.com/JakeFAU/product-scraper/internal/progress"
	"github.com/JakeFAU/product-scraper/internal/telemetry"
)

// State is how far a row got through the pipeline.
type State int

// Row states in order. Each is reachable only from its predecessor.
const (
	StateStart State = iota
	StateSearchFetched
	StateProductLinkFound
	StateProductPageFetched
	StateDone
)

var stateNames = [...]string{"start", "search_fetched", "product_link_found", "product_page_fetched", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome classifies how a row ended.
type Outcome string

// Row outcomes.
const (
	OutcomeDone               Outcome = "done"
	OutcomeSearchFailed       Outcome = "search_failed"
	OutcomeLinkNotFound       Outcome = "link_not_found"
	OutcomeProductFetchFailed Outcome = "product_fetch_failed"
	OutcomeError              Outcome = "error"
	OutcomeSkipped            Outcome = "skipped"
	OutcomeCanceled           Outcome = "canceled"
)

// Status texts recorded for failed rows.
const (
	ReasonSearchFailed       = "could not retrieve search results"
	ReasonLinkNotFound       = "product link not found"
	ReasonProductFetchFailed = "failed to fetch product page"
	ReasonEmptyIdentifier    = "empty identifier"
	ReasonCanceled           = "canceled"
)

// ExtractedRow is the result for one identifier. Empty strings mean absent.
type ExtractedRow struct {
	Identifier  string
	SearchURL   string
	ProductLink string
	Family      string
	ImageLinks  []string
	Outcome     Outcome
	// Reason is the terminal status text for rows that did not complete.
	Reason      string
	Reached     State
	StartedAt   time.Time
	CompletedAt time.Time
}

// OK reports whether every hop succeeded.
func (r ExtractedRow) OK() bool {
	return r.Outcome == OutcomeDone
}

// Status is the text written to the optional Status column.
func (r ExtractedRow) Status() string {
	if r.Reason != "" {
		return r.Reason
	}
	return string(r.Outcome)
}

// Message is the final status line shown for the row.
func (r ExtractedRow) Message() string {
	switch r.Outcome {
	case OutcomeDone:
		return fmt.Sprintf("Processing %s: Product page fetched and data extracted.", r.Identifier)
	case OutcomeSearchFailed:
		return fmt.Sprintf("Processing Identifier: %s - Could not retrieve search results.", r.Identifier)
	case OutcomeLinkNotFound:
		return fmt.Sprintf("Processing %s: Product link not found.", r.Identifier)
	case OutcomeProductFetchFailed:
		return fmt.Sprintf("Processing %s: Failed to fetch product page.", r.Identifier)
	case OutcomeSkipped:
		return "Skipping row: empty identifier."
	case OutcomeCanceled:
		return fmt.Sprintf("Processing %s: canceled.", r.Identifier)
	default:
		return fmt.Sprintf("Error processing Identifier %s: %s", r.Identifier, r.Reason)
	}
}

// Getter fetches a URL with retries. *fetcher.Retrying satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, rep progress.Reporter) fetcher.Result
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Pipeline processes one identifier at a time. It holds no per-row state and
// may be reused across rows.
type Pipeline struct {
	cfg       ExtractionConfig
	template  SearchTemplate
	getter    Getter
	extractor *extract.Extractor
	clock     Clock
	logger    *zap.Logger
}

// NewPipeline validates cfg and builds a Pipeline. A nil extractor registers
// the XPath and CSS engines; a nil clock uses the system clock.
func NewPipeline(cfg ExtractionConfig, getter Getter, extractor *extract.Extractor, clock Clock, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if getter == nil {
		return nil, errors.New("pipeline: getter is required")
	}
	tmpl, err := NewSearchTemplate(cfg.SearchURLTemplate)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = extract.NewExtractor(logger)
	}
	if clock == nil {
		clock = system.New()
	}
	return &Pipeline{
		cfg:       cfg,
		template:  tmpl,
		getter:    getter,
		extractor: extractor,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() ExtractionConfig {
	return p.cfg
}

// Process runs the search, link, product page, and extraction hops for
// identifier. It never panics and never returns an error: every failure is
// recorded on the returned row.
func (p *Pipeline) Process(ctx context.Context, identifier string, status progress.StatusLine) (row ExtractedRow) {
	if status == nil {
		status = progress.NewTracker(nil)
	}
	row = ExtractedRow{Identifier: identifier, StartedAt: p.clock.Now(), Reached: StateStart}
	logger := p.logger.With(zap.String("identifier", identifier))
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.row", trace.WithAttributes(attribute.String("identifier", identifier)))

	defer func() {
		if r := recover(); r != nil {
			row.Outcome = OutcomeError
			row.Reason = fmt.Sprint(r)
			logger.Error("row failed", zap.Any("panic", r), zap.Stringer("reached", row.Reached))
		}
		row.CompletedAt = p.clock.Now()
		metrics.ObserveRow(string(row.Outcome), row.CompletedAt.Sub(row.StartedAt), len(row.ImageLinks))
		span.SetAttributes(
			attribute.String("outcome", string(row.Outcome)),
			attribute.String("reached", row.Reached.String()),
		)
		if !row.OK() && row.Outcome != OutcomeSkipped {
			span.SetStatus(codes.Error, row.Message())
		}
		span.End()
	}()

	if strings.TrimSpace(identifier) == "" {
		row.Outcome, row.Reason = OutcomeSkipped, ReasonEmptyIdentifier
		return row
	}

	row.SearchURL = p.template.Format(identifier)
	search := p.getter.Get(ctx, row.SearchURL, status.Scope(fmt.Sprintf("Processing %s: Searching - ", identifier)))
	if !search.OK() {
		p.fail(ctx, &row, OutcomeSearchFailed, ReasonSearchFailed)
		logger.Info("search failed", zap.String("url", row.SearchURL), zap.Error(search.Err))
		return row
	}
	row.Reached = StateSearchFetched

	link, ok := p.extractor.SingleLink(
		search.Body,
		p.cfg.ProductLink,
		p.cfg.ProductLinkBaseURL,
		row.SearchURL,
		status.Scope(fmt.Sprintf("Processing %s: Finding Product Link - ", identifier)),
	)
	if !ok {
		row.Outcome, row.Reason = OutcomeLinkNotFound, ReasonLinkNotFound
		logger.Info("product link not found", zap.String("selector", p.cfg.ProductLink.Expr))
		return row
	}
	row.ProductLink = link
	row.Reached = StateProductLinkFound

	page := p.getter.Get(ctx, link, status.Scope(fmt.Sprintf("Processing %s: Fetching Product Page - ", identifier)))
	if !page.OK() {
		p.fail(ctx, &row, OutcomeProductFetchFailed, ReasonProductFetchFailed)
		logger.Info("product page fetch failed", zap.String("url", link), zap.Error(page.Err))
		return row
	}
	row.Reached = StateProductPageFetched

	extracting := status.Scope(fmt.Sprintf("Processing %s: Extracting Data - ", identifier))
	if !p.cfg.Family.IsZero() {
		row.Family = strings.Join(p.extractor.TextList(page.Body, p.cfg.Family, extracting), FamilySeparator)
	}
	if !p.cfg.Image.IsZero() {
		row.ImageLinks = p.extractor.ImageLinks(page.Body, p.cfg.Image, "", link, extracting)
	}

	row.Outcome = OutcomeDone
	row.Reached = StateDone
	logger.Debug("row extracted", zap.String("url", link), zap.Int("images", len(row.ImageLinks)))
	return row
}

// fail records a fetch failure, or cancellation when ctx ended.
func (p *Pipeline) fail(ctx context.Context, row *ExtractedRow, outcome Outcome, reason string) {
	if ctx.Err() != nil {
		row.Outcome, row.Reason = OutcomeCanceled, ReasonCanceled
		return
	}
	row.Outcome, row.Reason = outcome, reason
}
