package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-scraper/internal/api"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/progress"
)

// newServeCmd creates the 'serve' subcommand: the batch runs in the background
// while health, metrics, and live progress are served over HTTP.
func newServeCmd(v *viper.Viper) *cobra.Command {
	var exitOnComplete bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs one batch in the background behind an HTTP status API",
		Long: `Starts the batch described by the configuration as a background task and
serves /healthz, /metrics, /v1/progress, and /v1/run until interrupted. The
output is written as soon as the batch ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd.Context(), exitOnComplete)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default \":8080\")")
	cmd.Flags().BoolVar(&exitOnComplete, "exit-on-complete", false, "stop serving once the batch output is written")
	bindFlags(v, cmd.Flags(), map[string]string{"server.addr": "addr"})
	return cmd
}

func runServeCommand(ctx context.Context, exitOnComplete bool) error {
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

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	snapshot := progress.NewSnapshot()
	task := pipeline.Start(ctx, runner, input, snapshot, progress.NewLogReporter(app.Logger.Named("progress")))
	server := api.NewServer(app.Config.Server, snapshot, task, app.Logger.Named("api"))

	persisted := make(chan error, 1)
	go func() {
		// Updates reach the snapshot directly; drain the channel so no drops are logged.
		for range task.Updates() {
		}
		persisted <- finishServedRun(ctx, app, task)
		if exitOnComplete {
			stop()
		}
	}()

	if err := server.Run(ctx); err != nil {
		return err
	}
	task.Cancel()
	return <-persisted
}

func finishServedRun(ctx context.Context, app *App, task *pipeline.Task) error {
	res, runErr := task.Wait()
	if res == nil {
		return runErr
	}
	if err := persist(context.WithoutCancel(ctx), app, res); err != nil {
		app.Logger.Error("persist run failed", zap.String("run_id", res.RunID), zap.Error(err))
		return errors.Join(runErr, err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("batch failed: %w", runErr)
	}
	return nil
}
