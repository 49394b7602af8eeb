// Package cmd defines and implements the CLI commands for the product scraper.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/config"
	"github.com/JakeFAU/product-scraper/internal/logging"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/telemetry"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands receive once configuration is loaded.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Services Services

	telemetry *telemetry.Providers
}

// Close flushes telemetry and the logger.
func (a *App) Close(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = a.Logger.Sync() //nolint:errcheck // best-effort flush
}

// newRootCmd creates and configures the root command. svc supplies the
// outbound dependencies so tests can swap them for in-memory fakes.
func newRootCmd(svc Services) *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Extracts product links, family paths, and images for a table of identifiers.",
		Long: `scraper reads a spreadsheet of product identifiers, searches a target
site for each one, follows the first product link it finds, and writes the
product link, family path, and image links back as new columns.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Loads config and builds the logger before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			app := &App{Config: cfg, Logger: logger, Services: svc}
			if cfg.Telemetry.Enabled {
				app.telemetry, err = telemetry.Init(cmd.Context(), telemetry.Config{
					ServiceName: cfg.Telemetry.ServiceName,
					Version:     cfg.Telemetry.Version,
					ProjectID:   cfg.Telemetry.ProjectID,
				})
				if err != nil {
					return fmt.Errorf("failed to initialize telemetry: %w", err)
				}
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*App); ok && app != nil {
				app.Close(context.WithoutCancel(cmd.Context()))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().Bool("development", false, "use the development logger")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	bindFlags(v, cmd.PersistentFlags(), map[string]string{
		"logging.development": "development",
		"logging.level":       "log-level",
	})

	addRunFlags(v, cmd.PersistentFlags())

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd(v))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, newRootCmd(DefaultServices()), os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var cfgErr *pipeline.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(stderr, "Configuration error:\n%v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func resolveApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

// bindFlags maps config keys to flag names. Unchanged flags never override
// file, env, or default values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
