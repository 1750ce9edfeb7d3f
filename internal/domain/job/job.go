// Package job models queued ingestion work.
package job

import (
	"errors"

	"github.com/halcyon-data/docdex/internal/domain/chunk"
)

// Job is one queued document ingestion request. The source document is
// referenced by blob path; the queue never carries file bytes.
type Job struct {
	RunID    string         `json:"runId"`
	Index    string         `json:"index"`
	FileName string         `json:"fileName"`
	BlobPath string         `json:"blobPath"`
	Strategy chunk.Strategy `json:"strategy,omitempty"`

	// Token chunker overrides, used when Strategy is custom.
	MaxTokens int `json:"maxTokens,omitempty"`
	Overlap   int `json:"overlap,omitempty"`

	// Raw document metadata, normalized by the pipeline.
	Title         string `json:"title,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	DocumentType  string `json:"documentType,omitempty"`
}

// Validate checks the fields a worker cannot proceed without.
func (j *Job) Validate() error {
	if j.RunID == "" {
		return errors.New("job: run id is required")
	}
	if j.Index == "" {
		return errors.New("job: index is required")
	}
	if j.FileName == "" {
		return errors.New("job: file name is required")
	}
	if j.BlobPath == "" {
		return errors.New("job: blob path is required")
	}
	if _, err := chunk.ParseStrategy(string(j.Strategy)); err != nil {
		return err
	}
	return nil
}
