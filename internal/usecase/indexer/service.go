// Package indexer buffers content units and flushes them to the search
// store in fixed-size batches, recovering once from a missing index by
// rebuilding the schema and retrying.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/unit"
	"github.com/halcyon-data/docdex/internal/metrics"
)

// DefaultBatchSize is the number of buffered units that triggers a flush.
const DefaultBatchSize = 10

// reconcileLocks serializes schema reconciliation per index across
// concurrently running pipelines in this process.
var reconcileLocks sync.Map // index name -> *sync.Mutex

func lockFor(index string) *sync.Mutex {
	v, _ := reconcileLocks.LoadOrStore(index, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Service accumulates units for one target index and uploads them in
// batches. It is not safe for concurrent use; run one per ingestion.
type Service struct {
	store     Store
	index     string
	vectorDim int
	batchSize int
	buf       []unit.Unit
	logger    *zap.Logger
}

// New creates an indexer bound to one target index.
func New(store Store, index string, vectorDim int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		index:     index,
		vectorDim: vectorDim,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides the flush threshold.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Add buffers one unit, flushing when the batch size is reached.
func (s *Service) Add(ctx context.Context, u unit.Unit) error {
	s.buf = append(s.buf, u)
	if len(s.buf) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

// Flush uploads any buffered units. Call once at end of document so the
// final partial batch is not lost.
func (s *Service) Flush(ctx context.Context) error {
	return s.flush(ctx)
}

// Pending returns the number of buffered units.
func (s *Service) Pending() int { return len(s.buf) }

func (s *Service) flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	batch := s.buf
	s.buf = nil

	err := s.uploadProjected(ctx, batch)
	if err == nil {
		metrics.PipelineFlushesTotal.WithLabelValues(s.index, "ok").Inc()
		s.countIndexed(batch)
		return nil
	}

	if !errors.Is(err, domain.ErrIndexNotFound) {
		metrics.PipelineFlushesTotal.WithLabelValues(s.index, "failed").Inc()
		return domain.NewFlushFailed(s.index, len(batch), err)
	}

	// The index vanished; rebuild it and retry this batch exactly once.
	if rerr := s.reconcile(ctx); rerr != nil {
		metrics.PipelineFlushesTotal.WithLabelValues(s.index, "failed").Inc()
		return domain.NewFlushFailed(s.index, len(batch), rerr)
	}
	if rerr := s.uploadAll(ctx, batch); rerr != nil {
		metrics.PipelineFlushesTotal.WithLabelValues(s.index, "failed").Inc()
		return domain.NewFlushFailed(s.index, len(batch), rerr)
	}

	metrics.PipelineFlushesTotal.WithLabelValues(s.index, "reconciled").Inc()
	s.countIndexed(batch)
	return nil
}

// uploadProjected fetches the live schema and uploads the batch with any
// unknown fields dropped per unit, so schema drift degrades instead of failing.
func (s *Service) uploadProjected(ctx context.Context, batch []unit.Unit) error {
	allowed, err := s.store.GetSchema(ctx, s.index)
	if err != nil {
		return fmt.Errorf("get schema: %w", err)
	}

	records := make([]unit.Record, 0, len(batch))
	for _, u := range batch {
		fields, dropped := Project(u.Fields(), allowed)
		for _, f := range dropped {
			metrics.PipelineFieldsDroppedTotal.WithLabelValues(s.index, f).Inc()
			s.logger.Warn("field not in live schema, dropped",
				zap.String("index", s.index),
				zap.String("field", f),
			)
		}

		rec := unit.Record{ID: u.ContentID(), Fields: fields}
		if allowed[unit.FieldContentEmbedding] {
			rec.Embedding = u.Embedding()
		} else {
			metrics.PipelineFieldsDroppedTotal.WithLabelValues(s.index, unit.FieldContentEmbedding).Inc()
			s.logger.Warn("vector field not in live schema, dropped",
				zap.String("index", s.index),
			)
		}
		records = append(records, rec)
	}

	return s.store.UploadBatch(ctx, s.index, records)
}

// uploadAll uploads the batch unprojected; used right after a rebuild, when
// the live schema is known to be the full desired one.
func (s *Service) uploadAll(ctx context.Context, batch []unit.Unit) error {
	records := make([]unit.Record, 0, len(batch))
	for _, u := range batch {
		records = append(records, unit.Record{
			ID:        u.ContentID(),
			Fields:    u.Fields(),
			Embedding: u.Embedding(),
		})
	}
	return s.store.UploadBatch(ctx, s.index, records)
}

// reconcile rebuilds the index. Only one rebuild per index runs at a time;
// a pipeline that lost the race finds the index present and returns early.
func (s *Service) reconcile(ctx context.Context) error {
	mu := lockFor(s.index)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.store.GetSchema(ctx, s.index)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrIndexNotFound) {
		return fmt.Errorf("get schema: %w", err)
	}

	if err := s.store.DeleteIndex(ctx, s.index); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
		return fmt.Errorf("delete index: %w", err)
	}
	if err := s.store.CreateIndex(ctx, s.index, s.vectorDim); err != nil && !errors.Is(err, domain.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}

	s.logger.Info("index rebuilt",
		zap.String("index", s.index),
		zap.Int("vector_dim", s.vectorDim),
	)
	return nil
}

func (s *Service) countIndexed(batch []unit.Unit) {
	for _, u := range batch {
		kind := "text"
		if u.IsImage() {
			kind = "image"
		}
		metrics.PipelineUnitsIndexedTotal.WithLabelValues(s.index, kind).Inc()
	}
}
