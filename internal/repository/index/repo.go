// Package index manages FT content indexes and persists projected unit
// records as hashes under the index key prefix.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/halcyon-data/docdex/internal/db"
	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/unit"
)

// store is the consumer interface for the search store (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	Info(ctx context.Context, name string) (*db.IndexInfo, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the indexer usecase's Store port.
type Repo struct {
	store store
	hnsw  HNSWConfig
}

// New creates a search store repository.
func New(s store) *Repo {
	return &Repo{store: s, hnsw: HNSWConfig{M: 32, EFConstruct: 400}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// GetSchema returns the set of field identifiers the live index declares.
func (r *Repo) GetSchema(ctx context.Context, index string) (map[string]bool, error) {
	info, err := r.store.Info(ctx, indexName(index))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("index info %s: %w", index, err)
	}

	fields := make(map[string]bool, len(info.Fields))
	for _, f := range info.Fields {
		fields[f] = true
	}
	return fields, nil
}

// CreateIndex creates the content index with the full target schema.
func (r *Repo) CreateIndex(ctx context.Context, index string, vectorDim int) error {
	def := buildIndex(index, vectorDim, r.hnsw)
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return domain.ErrIndexExists
		}
		return fmt.Errorf("create index %s: %w", index, err)
	}
	return nil
}

// DeleteIndex drops the content index. Unit hashes stay behind; a
// recreated index picks them up again through the key prefix.
func (r *Repo) DeleteIndex(ctx context.Context, index string) error {
	if err := r.store.DropIndex(ctx, indexName(index)); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domain.ErrIndexNotFound
		}
		return fmt.Errorf("drop index %s: %w", index, err)
	}
	return nil
}

// UploadBatch writes projected unit records in a single pipeline.
func (r *Repo) UploadBatch(ctx context.Context, index string, records []unit.Record) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return fmt.Errorf("record %d: missing content id", i)
		}
		items = append(items, db.HashSetItem{
			Key:    unitKey(index, rec.ID),
			Fields: buildHashFields(rec),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upload %d units to %s: %w", len(records), index, err)
	}
	return nil
}

// Redis key patterns: docdex:{index}:idx, docdex:{index}:unit:{id}

func indexName(index string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, index)
}

func unitKey(index, id string) string {
	return fmt.Sprintf("%s%s:unit:%s", domain.KeyPrefix, index, id)
}

func unitPrefix(index string) string {
	return fmt.Sprintf("%s%s:unit:", domain.KeyPrefix, index)
}
