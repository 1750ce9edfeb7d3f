package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_runs_total",
			Help:      "Total ingestion runs by terminal status",
		},
		[]string{"status"}, // "completed" / "failed"
	)

	PipelineRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docdex",
			Name:      "pipeline_run_duration_seconds",
			Help:      "End-to-end duration of one document ingestion run",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	PipelineChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_chunks_total",
			Help:      "Chunks produced, by chunking strategy",
		},
		[]string{"strategy"}, // "document_layout" / "custom"
	)

	PipelineUnitsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_units_indexed_total",
			Help:      "Content units successfully flushed to the search index",
		},
		[]string{"index", "kind"}, // kind: "text" / "image"
	)

	PipelineFiguresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_figures_total",
			Help:      "Figure crops by extraction outcome",
		},
		[]string{"status"}, // "persisted" / "skipped"
	)

	PipelineVerbalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_verbalizations_total",
			Help:      "Figure descriptions by outcome",
		},
		[]string{"status"}, // "ok" / "fallback"
	)

	PipelineFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_flushes_total",
			Help:      "Index batch flushes by outcome",
		},
		[]string{"index", "outcome"}, // "ok" / "reconciled" / "failed"
	)

	PipelineFieldsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "pipeline_fields_dropped_total",
			Help:      "Unit fields dropped during schema projection",
		},
		[]string{"index", "field"},
	)

	QueueJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "queue_jobs_total",
			Help:      "Ingestion queue jobs by lifecycle stage",
		},
		[]string{"status"}, // "enqueued" / "completed" / "failed"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineRunDuration)
	prometheus.MustRegister(PipelineChunksTotal)
	prometheus.MustRegister(PipelineUnitsIndexedTotal)
	prometheus.MustRegister(PipelineFiguresTotal)
	prometheus.MustRegister(PipelineVerbalizationsTotal)
	prometheus.MustRegister(PipelineFlushesTotal)
	prometheus.MustRegister(PipelineFieldsDroppedTotal)
	prometheus.MustRegister(QueueJobsTotal)
	pipelineMetricsRegistered = true
}
