// Package run models the observable state of one document ingestion run.
package run

import "time"

// State is the lifecycle state of a run.
type State string

const (
	// StatePending means the run is queued but not started.
	StatePending State = "pending"
	// StateRunning means the pipeline is processing the document.
	StateRunning State = "running"
	// StateCompleted means every batch flushed successfully.
	StateCompleted State = "completed"
	// StateFailed means the run aborted; Error carries the cause.
	StateFailed State = "failed"
)

// Status is a snapshot of one run's progress.
type Status struct {
	RunID     string         `json:"runId"`
	Index     string         `json:"index"`
	FileName  string         `json:"fileName"`
	State     State          `json:"state"`
	Step      string         `json:"step,omitempty"`
	Progress  int            `json:"progress"` // 0..100
	Message   string         `json:"message,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Terminal reports whether the run reached a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// AddCounts merges counter deltas into the snapshot.
func (s *Status) AddCounts(deltas map[string]int) {
	if len(deltas) == 0 {
		return
	}
	if s.Counts == nil {
		s.Counts = make(map[string]int, len(deltas))
	}
	for k, v := range deltas {
		s.Counts[k] += v
	}
}
