// Package report fans pipeline progress out to logs, metrics, and the run
// status store. Reporting is fire-and-forget: a reporter must never fail the
// run it observes.
package report

import "context"

// Pipeline step names.
const (
	StepAnalyze   = "analyze"
	StepChunk     = "chunk"
	StepEmbed     = "embed"
	StepFigures   = "figures"
	StepVerbalize = "verbalize"
	StepIndex     = "index"
	StepArchive   = "archive"
	StepDone      = "done"
)

// Counter keys used in Event.Increments.
const (
	CounterChunks             = "chunks"
	CounterPagesSkipped       = "pages_skipped"
	CounterTextUnits          = "units_text"
	CounterImageUnits         = "units_image"
	CounterFiguresPersisted   = "figures_persisted"
	CounterFiguresSkipped     = "figures_skipped"
	CounterVerbalizedOK       = "verbalized_ok"
	CounterVerbalizedFallback = "verbalized_fallback"
)

// Event is one progress notification from the pipeline.
// Progress below zero means "unchanged".
type Event struct {
	Step       string
	Message    string
	Progress   int
	Increments map[string]int
}

// Reporter receives pipeline progress events.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) {}

// NewNop returns a reporter that discards every event.
func NewNop() Reporter {
	return nopReporter{}
}

type multiReporter struct {
	reporters []Reporter
}

// NewMulti fans each event out to all given reporters in order.
func NewMulti(reporters ...Reporter) Reporter {
	return &multiReporter{reporters: reporters}
}

func (m *multiReporter) Report(ctx context.Context, e Event) {
	for _, r := range m.reporters {
		r.Report(ctx, e)
	}
}
