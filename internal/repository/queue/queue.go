// Package queue moves ingestion jobs through a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-data/docdex/internal/db"
	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/job"
)

// store is the consumer interface for queue operations (ISP).
type store interface {
	LPush(ctx context.Context, key string, values ...string) error
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// Queue is a Redis-list-backed job queue. LPUSH + BRPOP gives FIFO order
// across any number of competing workers.
type Queue struct {
	store store
	key   string
}

// New creates a job queue on the given list key.
func New(s store, key string) *Queue {
	if key == "" {
		key = domain.KeyPrefix + "jobs:ingest"
	}
	return &Queue{store: s, key: key}
}

// Enqueue validates and pushes one job.
func (q *Queue) Enqueue(ctx context.Context, j job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", j.RunID, err)
	}
	if err := q.store.LPush(ctx, q.key, string(data)); err != nil {
		return fmt.Errorf("enqueue job %s: %w", j.RunID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. ok is false when the
// timeout elapses with nothing queued.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (j job.Job, ok bool, err error) {
	raw, err := q.store.BRPop(ctx, q.key, timeout)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return job.Job{}, false, nil
		}
		return job.Job{}, false, fmt.Errorf("dequeue: %w", err)
	}

	// The job is already popped; a malformed payload is reported, not requeued.
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return job.Job{}, false, fmt.Errorf("parse job payload: %w", err)
	}
	return j, true, nil
}

// Len reports the queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.store.LLen(ctx, q.key)
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return n, nil
}
