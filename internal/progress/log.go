package progress

import "go.uber.org/zap"

// LogReporter mirrors progress messages into structured logs.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter wires a zap logger to the Reporter interface.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

// Report logs the message at Info level.
func (r *LogReporter) Report(message string, percent int) {
	r.logger.Info(message, zap.Int("percent", percent))
}
