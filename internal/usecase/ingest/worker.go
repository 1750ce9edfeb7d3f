package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain/chunk"
	"github.com/halcyon-data/docdex/internal/domain/job"
	"github.com/halcyon-data/docdex/internal/metrics"
)

// DefaultDequeueTimeout bounds one blocking queue poll so a worker notices
// shutdown promptly.
const DefaultDequeueTimeout = 5 * time.Second

// Pipeline is what the worker needs from the ingestion service.
type Pipeline interface {
	Run(ctx context.Context, req Request) error
}

// Worker consumes queued jobs and runs the pipeline on each one. Job
// failures are contained: the run is marked failed and the worker moves on.
type Worker struct {
	queue    JobQueue
	runs     RunStore
	blob     BlobStore
	pipeline Pipeline
	logger   *zap.Logger
	backoff  time.Duration
}

// NewWorker creates a queue worker.
func NewWorker(queue JobQueue, runs RunStore, blob BlobStore, pipeline Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		runs:     runs,
		blob:     blob,
		pipeline: pipeline,
		logger:   logger,
		backoff:  time.Second,
	}
}

// Run processes jobs until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("ingest worker started")
	for {
		j, ok, err := w.queue.Dequeue(ctx, DefaultDequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("ingest worker stopped")
				return nil
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				w.logger.Info("ingest worker stopped")
				return nil
			case <-time.After(w.backoff): // don't spin on a broken queue
			}
			continue
		}
		if !ok {
			if ctx.Err() != nil {
				w.logger.Info("ingest worker stopped")
				return nil
			}
			continue
		}

		w.process(ctx, j)
	}
}

func (w *Worker) process(ctx context.Context, j job.Job) {
	log := w.logger.With(
		zap.String("run_id", j.RunID),
		zap.String("index", j.Index),
		zap.String("file", j.FileName),
	)

	if err := j.Validate(); err != nil {
		metrics.QueueJobsTotal.WithLabelValues("failed").Inc()
		log.Error("job rejected", zap.Error(err))
		return
	}

	log.Info("job started")
	if err := w.runs.Create(ctx, j.RunID, j.Index, j.FileName); err != nil {
		// Status is observability; the job still runs.
		log.Warn("run status create failed", zap.Error(err))
	}

	content, err := w.blob.Download(ctx, j.BlobPath)
	if err != nil {
		w.fail(ctx, log, j.RunID, fmt.Errorf("download source %s: %w", j.BlobPath, err))
		return
	}

	req := Request{
		RunID:         j.RunID,
		Index:         j.Index,
		FileName:      j.FileName,
		Content:       content,
		BlobPath:      j.BlobPath,
		Strategy:      j.Strategy,
		TokenOptions:  chunk.TokenOptions{MaxTokens: j.MaxTokens, Overlap: j.Overlap},
		Title:         j.Title,
		PublishedDate: j.PublishedDate,
		DocumentType:  j.DocumentType,
	}
	if err := w.pipeline.Run(ctx, req); err != nil {
		w.fail(ctx, log, j.RunID, err)
		return
	}

	if err := w.runs.MarkCompleted(ctx, j.RunID); err != nil {
		log.Warn("run status update failed", zap.Error(err))
	}
	metrics.QueueJobsTotal.WithLabelValues("completed").Inc()
	log.Info("job completed")
}

func (w *Worker) fail(ctx context.Context, log *zap.Logger, runID string, cause error) {
	metrics.QueueJobsTotal.WithLabelValues("failed").Inc()
	log.Error("job failed", zap.Error(cause))
	if err := w.runs.MarkFailed(ctx, runID, cause); err != nil {
		log.Warn("run status update failed", zap.Error(err))
	}
}
