// Package progress carries human-readable progress messages and a coarse
// completion percentage from the scraping core to whatever shell renders them.
// The core only ever talks to a Reporter; sinks such as the zap log reporter,
// the snapshot used by the HTTP API, and the non-blocking channel used by
// background tasks are composed with Multi.
package progress
