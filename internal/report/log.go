package report

import (
	"context"

	"go.uber.org/zap"
)

type logReporter struct {
	log *zap.Logger
}

// NewLog returns a reporter that writes each event to the given logger.
func NewLog(log *zap.Logger) Reporter {
	return &logReporter{log: log}
}

func (r *logReporter) Report(_ context.Context, e Event) {
	fields := []zap.Field{zap.String("step", e.Step)}
	if e.Progress >= 0 {
		fields = append(fields, zap.Int("progress", e.Progress))
	}
	if len(e.Increments) > 0 {
		fields = append(fields, zap.Any("counts", e.Increments))
	}

	msg := e.Message
	if msg == "" {
		msg = "pipeline progress"
	}
	r.log.Info(msg, fields...)
}
