// Package status persists run progress snapshots as JSON in the KV store.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-data/docdex/internal/db"
	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/run"
)

// store is the consumer interface for status persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DefaultTTL keeps finished runs readable for a week.
const DefaultTTL = 7 * 24 * time.Hour

// Store implements report.StatusSink plus the run lifecycle transitions.
type Store struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a run status store. ttl <= 0 falls back to DefaultTTL.
func New(s store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{store: s, ttl: ttl, now: time.Now}
}

// Create persists the initial pending snapshot for a run.
func (s *Store) Create(ctx context.Context, runID, index, fileName string) error {
	now := s.now().UTC()
	st := run.Status{
		RunID:     runID,
		Index:     index,
		FileName:  fileName,
		State:     run.StatePending,
		StartedAt: now,
		UpdatedAt: now,
	}
	return s.save(ctx, &st)
}

// UpdateProgress merges one progress event into the stored snapshot.
// progress < 0 leaves the stored percentage unchanged.
func (s *Store) UpdateProgress(ctx context.Context, runID, step string, progress int, message string, increments map[string]int) error {
	st, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	st.State = run.StateRunning
	if step != "" {
		st.Step = step
	}
	if progress >= 0 {
		st.Progress = progress
	}
	if message != "" {
		st.Message = message
	}
	st.AddCounts(increments)
	st.UpdatedAt = s.now().UTC()

	return s.save(ctx, st)
}

// MarkCompleted finalizes the run snapshot.
func (s *Store) MarkCompleted(ctx context.Context, runID string) error {
	st, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	st.State = run.StateCompleted
	st.Progress = 100
	st.UpdatedAt = s.now().UTC()

	return s.save(ctx, st)
}

// MarkFailed records the failure cause on the run snapshot.
func (s *Store) MarkFailed(ctx context.Context, runID string, cause error) error {
	st, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	st.State = run.StateFailed
	if cause != nil {
		st.Error = cause.Error()
	}
	st.UpdatedAt = s.now().UTC()

	return s.save(ctx, st)
}

// Get loads a run snapshot.
func (s *Store) Get(ctx context.Context, runID string) (*run.Status, error) {
	data, err := s.store.Get(ctx, runKey(runID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	var st run.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", runID, err)
	}
	return &st, nil
}

func (s *Store) save(ctx context.Context, st *run.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", st.RunID, err)
	}
	if err := s.store.SetWithTTL(ctx, runKey(st.RunID), data, s.ttl); err != nil {
		return fmt.Errorf("save run %s: %w", st.RunID, err)
	}
	return nil
}

// Redis key pattern: docdex:run:{id}

func runKey(runID string) string {
	return fmt.Sprintf("%srun:%s", domain.KeyPrefix, runID)
}
