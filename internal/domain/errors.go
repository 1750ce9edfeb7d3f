package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrIndexNotFound signals that the target search index does not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexExists signals a duplicate search index.
	ErrIndexExists = errors.New("index already exists")
	// ErrUnsupportedFormat signals a document that is not a valid PDF.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyAnalysis signals that layout analysis produced no content.
	ErrEmptyAnalysis = errors.New("empty analysis result")
	// ErrFigureNotFound signals a missing figure crop in the analysis result.
	ErrFigureNotFound = errors.New("figure not found")
	// ErrRunNotFound signals a missing ingestion run.
	ErrRunNotFound = errors.New("run not found")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals that the provider token budget is spent.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingCountMismatch signals that the provider returned a different
	// number of vectors than texts submitted.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)

// FlushFailedError wraps a double flush failure with the number of units dropped.
type FlushFailedError struct {
	Index     string
	LostUnits int
	Err       error
}

func (e *FlushFailedError) Error() string {
	return fmt.Sprintf("flush to %s failed, %d units lost: %v", e.Index, e.LostUnits, e.Err)
}

func (e *FlushFailedError) Unwrap() error { return e.Err }

// NewFlushFailed creates a flush failure error.
func NewFlushFailed(index string, lost int, err error) error {
	return &FlushFailedError{Index: index, LostUnits: lost, Err: err}
}
