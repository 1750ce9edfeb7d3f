package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/logger"
)

// StatusSink persists per-run progress. Implemented by the run status
// repository.
type StatusSink interface {
	UpdateProgress(ctx context.Context, runID, step string, progress int, message string, increments map[string]int) error
}

type statusReporter struct {
	sink  StatusSink
	runID string
}

// NewStatus returns a reporter that records events against one run's status.
// Sink errors are logged and swallowed; progress persistence must not fail
// the run.
func NewStatus(sink StatusSink, runID string) Reporter {
	return &statusReporter{sink: sink, runID: runID}
}

func (r *statusReporter) Report(ctx context.Context, e Event) {
	if err := r.sink.UpdateProgress(ctx, r.runID, e.Step, e.Progress, e.Message, e.Increments); err != nil {
		logger.FromContext(ctx).Warn("failed to persist run progress",
			zap.String("run_id", r.runID),
			zap.String("step", e.Step),
			zap.Error(err),
		)
	}
}
