package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/product-scraper/internal/config"
	"github.com/JakeFAU/product-scraper/internal/fetcher"
	collyfetcher "github.com/JakeFAU/product-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/product-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/product-scraper/internal/storage"
	"github.com/JakeFAU/product-scraper/internal/storage/gcs"
	"github.com/JakeFAU/product-scraper/internal/storage/local"
	"github.com/JakeFAU/product-scraper/internal/store/postgres"
)

// HistoryStore persists per-row results.
type HistoryStore interface {
	SaveRows(ctx context.Context, runID string, rows []pipeline.ExtractedRow) error
}

// Services builds the outbound dependencies of a run. Each opener returns a
// release func that must be called when the command is done.
type Services struct {
	NewFetcher    func(cfg fetcher.Config) fetcher.Fetcher
	OpenStore     func(ctx context.Context, loc storage.Location) (storage.Store, func(), error)
	OpenPublisher func(ctx context.Context, cfg config.NotifyConfig) (publisher.Publisher, func(), error)
	OpenHistory   func(ctx context.Context, cfg config.HistoryConfig) (HistoryStore, func(), error)
}

// DefaultServices wires colly, the local filesystem, GCS, Pub/Sub, and Postgres.
func DefaultServices() Services {
	return Services{
		NewFetcher: func(cfg fetcher.Config) fetcher.Fetcher {
			return collyfetcher.New(cfg)
		},
		OpenStore:     openStore,
		OpenPublisher: openPublisher,
		OpenHistory:   openHistory,
	}
}

func openStore(ctx context.Context, loc storage.Location) (storage.Store, func(), error) {
	switch loc.Scheme {
	case storage.SchemeGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: loc.Root})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := local.New(local.Config{BaseDir: loc.Root})
		if err != nil {
			return nil, nil, fmt.Errorf("init local store: %w", err)
		}
		return store, func() {}, nil
	}
}

func openPublisher(ctx context.Context, cfg config.NotifyConfig) (publisher.Publisher, func(), error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	return pub, func() {
		pub.Stop()
		_ = client.Close()
	}, nil
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (HistoryStore, func(), error) {
	store, err := postgres.NewResultStore(ctx, postgres.Config{
		DSN:      cfg.DSN,
		Table:    cfg.Table,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open result history: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure result history schema: %w", err)
	}
	return store, store.Close, nil
}
