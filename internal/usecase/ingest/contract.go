package ingest

import (
	"context"
	"time"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/assoc"
	"github.com/halcyon-data/docdex/internal/domain/job"
	"github.com/halcyon-data/docdex/internal/domain/layout"
	"github.com/halcyon-data/docdex/internal/domain/unit"
)

// Analyzer is the document layout analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, fileName string, content []byte) (layout.Result, error)
}

// FigureExtractor persists analyzer-detected figures to blob storage.
type FigureExtractor interface {
	Extract(ctx context.Context, index, runID string, res layout.Result) []assoc.Figure
}

// Describer verbalizes a figure crop. The bool reports whether the model
// produced the description (false means the deterministic fallback).
type Describer interface {
	Describe(ctx context.Context, image []byte, contextText string, page int, fileName string) (string, bool)
}

// Embedder vectorizes chunk texts. Batch calls must return one vector per
// input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// BlobStore reads and writes document blobs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// UnitIndexer buffers content units and flushes them to the search store.
type UnitIndexer interface {
	Add(ctx context.Context, u unit.Unit) error
	Flush(ctx context.Context) error
}

// IndexerFactory builds a fresh unit indexer for one run. Indexers hold
// per-run buffers, so they cannot be shared across runs.
type IndexerFactory interface {
	ForIndex(index string) UnitIndexer
}

// IndexerFunc adapts a function to the IndexerFactory interface.
type IndexerFunc func(index string) UnitIndexer

// ForIndex calls f.
func (f IndexerFunc) ForIndex(index string) UnitIndexer { return f(index) }

// JobQueue hands out queued ingestion jobs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (j job.Job, ok bool, err error)
}

// RunStore records run lifecycle transitions.
type RunStore interface {
	Create(ctx context.Context, runID, index, fileName string) error
	MarkCompleted(ctx context.Context, runID string) error
	MarkFailed(ctx context.Context, runID string, cause error) error
}
