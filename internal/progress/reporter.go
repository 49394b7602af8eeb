package progress

import (
	"sync"
	"time"
)

// Reporter receives a status message and an overall percentage in [0,100].
// Implementations must not block the caller for long.
type Reporter interface {
	Report(message string, percent int)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(message string, percent int)

// Report calls f.
func (f ReporterFunc) Report(message string, percent int) {
	f(message, percent)
}

// Update is a single progress notification as seen by consumers.
type Update struct {
	Message string    `json:"message"`
	Percent int       `json:"percent"`
	At      time.Time `json:"at"`
}

type nopReporter struct{}

func (nopReporter) Report(string, int) {}

// Nop returns a Reporter that discards everything.
func Nop() Reporter {
	return nopReporter{}
}

// OrNop returns r, or a no-op Reporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop()
	}
	return r
}

type multiReporter []Reporter

func (m multiReporter) Report(message string, percent int) {
	for _, r := range m {
		r.Report(message, percent)
	}
}

// Multi fans a report out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	out := make(multiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot remembers the most recent update. It is safe for concurrent use and
// backs the progress endpoint of the HTTP API.
type Snapshot struct {
	mu     sync.RWMutex
	latest Update
	count  int64
	now    func() time.Time
}

// NewSnapshot returns an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{now: time.Now}
}

// Report records the update.
func (s *Snapshot) Report(message string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Update{Message: message, Percent: percent, At: s.now().UTC()}
	s.count++
}

// Latest returns the last update and the number of updates seen so far.
func (s *Snapshot) Latest() (Update, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.count
}
