package status

import (
	"context"
	"sync"
	"time"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/run"
)

// Memory is an in-process status store for one-shot CLI runs and tests.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*run.Status
	now  func() time.Time
}

// NewMemory creates an empty in-memory status store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*run.Status), now: time.Now}
}

// Create registers the initial pending snapshot for a run.
func (m *Memory) Create(_ context.Context, runID, index, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	m.runs[runID] = &run.Status{
		RunID:     runID,
		Index:     index,
		FileName:  fileName,
		State:     run.StatePending,
		StartedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// UpdateProgress merges one progress event into the stored snapshot.
func (m *Memory) UpdateProgress(_ context.Context, runID, step string, progress int, message string, increments map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.runs[runID]
	if !ok {
		return domain.ErrRunNotFound
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
	st.UpdatedAt = m.now().UTC()
	return nil
}

// MarkCompleted finalizes the run snapshot.
func (m *Memory) MarkCompleted(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.runs[runID]
	if !ok {
		return domain.ErrRunNotFound
	}
	st.State = run.StateCompleted
	st.Progress = 100
	st.UpdatedAt = m.now().UTC()
	return nil
}

// MarkFailed records the failure cause on the run snapshot.
func (m *Memory) MarkFailed(_ context.Context, runID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.runs[runID]
	if !ok {
		return domain.ErrRunNotFound
	}
	st.State = run.StateFailed
	if cause != nil {
		st.Error = cause.Error()
	}
	st.UpdatedAt = m.now().UTC()
	return nil
}

// Get returns a copy of the run snapshot.
func (m *Memory) Get(_ context.Context, runID string) (*run.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	cp := *st
	if st.Counts != nil {
		cp.Counts = make(map[string]int, len(st.Counts))
		for k, v := range st.Counts {
			cp.Counts[k] = v
		}
	}
	return &cp, nil
}
