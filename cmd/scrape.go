package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/progress"
)

// newScrapeCmd creates the 'scrape' subcommand, which runs one batch in the
// foreground and prints progress as it goes.
func newScrapeCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one extraction batch over an input table",
		Long: `Reads identifiers from the configured column of the input table, searches
the target site for each one, and writes the augmented table to the output
location. Input and output may be local paths or gs://bucket/object URIs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out io.Writer = cmd.OutOrStdout()
			if quiet {
				out = io.Discard
			}
			return runScrapeCommand(cmd.Context(), out)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress updates")
	return cmd
}

func runScrapeCommand(ctx context.Context, out io.Writer) error {
	app, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	if _, _, err := outputLocation(app); err != nil {
		return err
	}
	runner, err := buildRunner(app)
	if err != nil {
		return err
	}
	input, err := readInput(ctx, app)
	if err != nil {
		return err
	}

	task := pipeline.Start(ctx, runner, input, progress.NewLogReporter(app.Logger.Named("progress")))
	for upd := range task.Updates() {
		fmt.Fprintf(out, "[%3d%%] %s\n", upd.Percent, upd.Message)
	}
	res, runErr := task.Wait()
	if res == nil {
		return runErr
	}

	// A canceled batch still writes the rows it finished.
	if err := persist(context.WithoutCancel(ctx), app, res); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		app.Logger.Warn("batch canceled", zap.Int("processed", res.Summary.Processed), zap.Int("total", res.Summary.Total))
		return fmt.Errorf("batch canceled: %w", runErr)
	}

	s := res.Summary
	fmt.Fprintf(out, "Run %s: %d of %d succeeded, %d failed, %d skipped. Output: %s\n",
		s.RunID, s.Succeeded, s.Total, s.Failed, s.Skipped, s.Output)
	return nil
}

// addRunFlags registers the batch and extraction flags shared by scrape and
// serve and binds them to their config keys.
func addRunFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.StringP("input", "i", "", "input table (.xlsx, .xlsm, .csv; local path or gs://)")
	flags.StringP("output", "o", "", "output table (default \"Output_extracted_data.xlsx\")")
	flags.String("sheet", "", "input worksheet name (default: first sheet)")
	flags.String("identifier-column", "", "column holding the identifiers (default \"MPN\")")
	flags.String("search-url", "", "search URL template containing {mpn}")
	flags.String("product-link-selector", "", "selector for the product link on the search page")
	flags.String("product-link-kind", "", "product link selector kind: xpath or css")
	flags.String("product-link-base-url", "", "base URL for relative product links")
	flags.String("family-selector", "", "selector for the product family path")
	flags.String("family-kind", "", "family selector kind: xpath or css")
	flags.String("image-selector", "", "selector for product images")
	flags.String("image-kind", "", "image selector kind: xpath or css")
	flags.String("output-prefix", "", "name prefix of the product link column")
	flags.Bool("include-status", false, "add a Status column with each row's outcome")
	flags.Duration("row-delay", 0, "pause between identifiers")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.Int("max-attempts", 0, "fetch attempts per URL")
	flags.Duration("retry-delay", 0, "delay between fetch attempts")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	flags.Float64("host-rps", 0, "max requests per second to a single host (0 = unlimited)")
	bindFlags(v, flags, map[string]string{
		"batch.input":                           "input",
		"batch.output":                          "output",
		"batch.sheet":                           "sheet",
		"batch.row_delay":                       "row-delay",
		"extraction.identifier_column":          "identifier-column",
		"extraction.search_url_template":        "search-url",
		"extraction.product_link_selector":      "product-link-selector",
		"extraction.product_link_selector_kind": "product-link-kind",
		"extraction.product_link_base_url":      "product-link-base-url",
		"extraction.family_selector":            "family-selector",
		"extraction.family_selector_kind":       "family-kind",
		"extraction.image_selector":             "image-selector",
		"extraction.image_selector_kind":        "image-kind",
		"extraction.output_prefix":              "output-prefix",
		"extraction.include_status":             "include-status",
		"fetch.timeout":                         "timeout",
		"fetch.max_attempts":                    "max-attempts",
		"fetch.retry_delay":                     "retry-delay",
		"fetch.insecure_skip_verify":            "insecure",
		"fetch.host_rps":                        "host-rps",
	})
}
