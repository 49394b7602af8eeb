// Package system provides the wall clock used to timestamp rows and runs.
package system

import "time"

// Precision is the resolution of every timestamp the clock hands out. It
// matches Postgres timestamptz so stored history rows equal the in-memory ones.
const Precision = time.Microsecond

// Clock implements pipeline.Clock in UTC at Precision.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to Precision.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}
