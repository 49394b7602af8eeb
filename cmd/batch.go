package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/clock/system"
	"github.com/JakeFAU/product-scraper/internal/extract"
	"github.com/JakeFAU/product-scraper/internal/fetcher"
	"github.com/JakeFAU/product-scraper/internal/hash/sha256"
	"github.com/JakeFAU/product-scraper/internal/id/uuid"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/product-scraper/internal/sheet"
	"github.com/JakeFAU/product-scraper/internal/storage"
)

// buildRunner assembles fetcher, retry policy, extractor, and pipeline from
// the loaded configuration.
func buildRunner(app *App) (*pipeline.Runner, error) {
	cfg := app.Config
	logger := app.Logger

	var base fetcher.Fetcher = app.Services.NewFetcher(cfg.FetcherConfig())
	if cfg.Fetch.HostRPS > 0 {
		base = ratelimit.NewFetcher(base, ratelimit.New(ratelimit.Config{
			RPS:   cfg.Fetch.HostRPS,
			Burst: cfg.Fetch.HostBurst,
		}))
	}
	getter := fetcher.NewRetrying(
		base,
		cfg.RetryPolicy(),
		logger.Named("fetcher"),
	)
	p, err := pipeline.NewPipeline(
		cfg.Pipeline(),
		getter,
		extract.NewExtractor(logger.Named("extract")),
		system.New(),
		logger.Named("pipeline"),
	)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(p,
		pipeline.WithRowDelay(cfg.Batch.RowDelay),
		pipeline.WithIDGenerator(uuid.New()),
		pipeline.WithClock(system.New()),
		pipeline.WithLogger(logger.Named("runner")),
	), nil
}

// readInput loads the input table from a local path or gs:// URI.
func readInput(ctx context.Context, app *App) (*sheet.Table, error) {
	raw := app.Config.Batch.Input
	if raw == "" {
		return nil, &pipeline.ConfigError{Field: "batch.input", Message: "is required"}
	}
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return nil, &pipeline.ConfigError{Field: "batch.input", Message: err.Error(), Err: err}
	}
	format, err := sheet.FormatFromPath(loc.Object)
	if err != nil {
		return nil, &pipeline.ConfigError{Field: "batch.input", Message: err.Error(), Err: err}
	}

	store, release, err := app.Services.OpenStore(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer release()

	rc, err := store.GetObject(ctx, loc.Object)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", loc, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			app.Logger.Warn("close input failed", zap.Error(cerr))
		}
	}()

	table, err := sheet.Read(rc, format, app.Config.Batch.Sheet)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", loc, err)
	}
	app.Logger.Info("input loaded", zap.String("input", loc.String()), zap.Int("rows", table.Len()))
	return table, nil
}

// outputLocation validates the configured output before any row is fetched.
func outputLocation(app *App) (storage.Location, sheet.Format, error) {
	loc, err := storage.ParseLocation(app.Config.Batch.Output)
	if err != nil {
		return storage.Location{}, "", &pipeline.ConfigError{Field: "batch.output", Message: err.Error(), Err: err}
	}
	format, err := sheet.FormatFromPath(loc.Object)
	if err != nil {
		return storage.Location{}, "", &pipeline.ConfigError{Field: "batch.output", Message: err.Error(), Err: err}
	}
	return loc, format, nil
}

// persist writes the output table, then publishes the summary and saves row
// history when configured. Every step runs; failures are joined.
func persist(ctx context.Context, app *App, res *pipeline.Result) error {
	logger := app.Logger.With(zap.String("run_id", res.RunID))

	uri, checksum, err := writeOutput(ctx, app, res.Table)
	if err != nil {
		return err
	}
	res.Summary.Output = uri
	res.Summary.OutputSHA256 = checksum
	logger.Info("output written", zap.String("output", uri), zap.String("sha256", checksum))

	var errs []error
	if app.Config.Notify.Enabled() {
		if err := notify(ctx, app, res.Summary); err != nil {
			errs = append(errs, err)
		}
	}
	if app.Config.History.DSN != "" {
		if err := saveHistory(ctx, app, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeOutput encodes and stores the table, returning its URI and checksum.
func writeOutput(ctx context.Context, app *App, table *sheet.Table) (string, string, error) {
	loc, format, err := outputLocation(app)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := sheet.Write(&buf, format, table); err != nil {
		return "", "", fmt.Errorf("encode output: %w", err)
	}
	checksum := sha256.New().Hash(buf.Bytes())

	store, release, err := app.Services.OpenStore(ctx, loc)
	if err != nil {
		return "", "", err
	}
	defer release()

	uri, err := store.PutObject(ctx, loc.Object, format.ContentType(), &buf)
	if err != nil {
		return "", "", fmt.Errorf("write output %s: %w", loc, err)
	}
	return uri, checksum, nil
}

func notify(ctx context.Context, app *App, summary pipeline.RunSummary) error {
	pub, release, err := app.Services.OpenPublisher(ctx, app.Config.Notify)
	if err != nil {
		return err
	}
	defer release()

	id, err := pub.Publish(ctx, app.Config.Notify.Topic, summary)
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	app.Logger.Info("run summary published", zap.String("topic", app.Config.Notify.Topic), zap.String("message_id", id))
	return nil
}

func saveHistory(ctx context.Context, app *App, res *pipeline.Result) error {
	store, release, err := app.Services.OpenHistory(ctx, app.Config.History)
	if err != nil {
		return err
	}
	defer release()

	if err := store.SaveRows(ctx, res.RunID, res.Rows); err != nil {
		return fmt.Errorf("save result history: %w", err)
	}
	app.Logger.Info("result history saved", zap.Int("rows", len(res.Rows)))
	return nil
}
