package reputation

import (
	"context"

	"go.uber.org/zap"
)

// NoopReporter logs entries to zap instead of forwarding them.
// Use in development or when no reputation service is configured.
type NoopReporter struct {
	logger *zap.Logger
}

// NewNoopReporter creates a NoopReporter backed by the given logger.
func NewNoopReporter(logger *zap.Logger) *NoopReporter {
	return &NoopReporter{logger: logger}
}

// Report logs the entry and returns nil.
func (n *NoopReporter) Report(_ context.Context, entry *Entry) error {
	n.logger.Info("reputation (noop — not forwarded)",
		zap.String("subject", entry.Subject),
		zap.Int("score", entry.Score),
		zap.String("task_id", entry.TaskID),
	)
	return nil
}
