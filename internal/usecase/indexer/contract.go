package indexer

import (
	"context"

	"github.com/halcyon-data/docdex/internal/domain/unit"
)

// Store is the search-store surface the indexer drives.
type Store interface {
	GetSchema(ctx context.Context, index string) (map[string]bool, error)
	CreateIndex(ctx context.Context, index string, vectorDim int) error
	DeleteIndex(ctx context.Context, index string) error
	UploadBatch(ctx context.Context, index string, records []unit.Record) error
}
