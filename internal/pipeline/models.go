package pipeline

import (
	"time"

	"showrunner/internal/qualitygate"
	"showrunner/internal/stage"
)

// Status is the run-level state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPaused    Status = "paused"
)

// Terminal reports whether the run can no longer advance without a resume.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageStatus is the per-stage state inside a run.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageRecord is one executed stage. It is written once per execution and
// overwritten only when that same stage is re-executed on resume.
type StageRecord struct {
	Status      StageStatus         `json:"status"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	DurationMs  int64               `json:"durationMs"`
	Cost        float64             `json:"cost"`
	Provider    *stage.ProviderInfo `json:"provider,omitempty"`
	Error       string              `json:"error,omitempty"`
	Data        map[string]any      `json:"data,omitempty"`
	Artifacts   []string            `json:"artifacts,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Run is one execution of the full stage sequence for one logical date.
// Runs are never deleted; they form the audit trail.
type Run struct {
	Date         string
	Status       Status
	CurrentStage stage.ID
	StartedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	Topic        string
	Stages       map[stage.ID]*StageRecord
	Quality      qualitygate.Context
	ErrorMessage string
}

// TotalCost sums the per-stage spend across the run.
func (r *Run) TotalCost() float64 {
	total := 0.0
	for _, rec := range r.Stages {
		total += rec.Cost
	}
	return total
}

// StageRecordFor returns the record for id, if the stage has executed.
func (r *Run) StageRecordFor(id stage.ID) (*StageRecord, bool) {
	rec, ok := r.Stages[id]
	return rec, ok
}
