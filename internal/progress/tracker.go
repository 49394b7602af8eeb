package progress

import "sync"

// StatusLine is the view of a Tracker handed to the per-row pipeline: it can
// update the status text but never moves the percentage.
type StatusLine interface {
	Status(message string)
	Scope(prefix string) Reporter
}

// Tracker clamps percentages to [0,100] and never lets them decrease, so the
// two-phase batch figures always render as a monotonic bar.
type Tracker struct {
	mu      sync.Mutex
	out     Reporter
	percent int
}

// NewTracker wraps out.
func NewTracker(out Reporter) *Tracker {
	return &Tracker{out: OrNop(out)}
}

// Report forwards message with max(percent, last percent).
func (t *Tracker) Report(message string, percent int) {
	t.mu.Lock()
	if percent > 100 {
		percent = 100
	}
	if percent > t.percent {
		t.percent = percent
	}
	current := t.percent
	t.mu.Unlock()
	t.out.Report(message, current)
}

// Status forwards message at the current percentage.
func (t *Tracker) Status(message string) {
	t.mu.Lock()
	current := t.percent
	t.mu.Unlock()
	t.out.Report(message, current)
}

// Percent returns the highest percentage reported so far.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// Scope returns a Reporter that prefixes messages and ignores the percentage
// supplied by the caller. Fetch and extraction steps report their own local
// figures which have no meaning for the overall batch.
func (t *Tracker) Scope(prefix string) Reporter {
	return ReporterFunc(func(message string, _ int) {
		t.Status(prefix + message)
	})
}
