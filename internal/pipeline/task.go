package pipeline

import (
	"context"

	"github.com/JakeFAU/product-scraper/internal/progress"
	"github.com/JakeFAU/product-scraper/internal/sheet"
)

// Task runs a batch on its own goroutine and streams progress back to the
// caller, which stays free to render updates or serve requests.
type Task struct {
	updates *progress.Channel
	cancel  context.CancelFunc
	done    chan struct{}

	result *Result
	err    error
}

// Start launches runner.Run over input. Updates go to the task channel and to
// every extra reporter. Canceling ctx, or calling Cancel, stops the batch
// between rows and between fetch attempts.
func Start(ctx context.Context, runner *Runner, input *sheet.Table, extra ...progress.Reporter) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		updates: progress.NewChannel(0, runner.logger),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	rep := progress.Multi(append([]progress.Reporter{t.updates}, extra...)...)

	go func() {
		defer close(t.done)
		defer t.updates.Close()
		defer cancel()
		t.result, t.err = runner.Run(ctx, input, rep)
	}()
	return t
}

// Updates delivers progress until the run ends, then closes.
func (t *Task) Updates() <-chan progress.Update {
	return t.updates.Updates()
}

// Done is closed when the run has ended.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the run to stop.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the run ends.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}
