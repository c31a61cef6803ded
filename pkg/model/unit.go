package model

import (
	"time"
)

// UnitSpec describes one testcase as produced by a unit source, before any
// process exists for it.
type UnitSpec struct {
	Name string `json:"name"`

	// DependsOn and DelayMinutes are either both set or both nil.
	DependsOn    *string  `json:"depends_on,omitempty"`
	DelayMinutes *float64 `json:"delay_minutes,omitempty"`

	// Spawn parameters for the worker process.
	Command []string          `json:"command"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// Run is one invocation of the scheduler over a set of units.
type Run struct {
	ID            string     `json:"id"`
	Manifest      string     `json:"manifest"`
	ParallelLimit int        `json:"parallel_limit"`
	Status        RunStatus  `json:"status"`
	Total         int        `json:"total"`
	Passed        int        `json:"passed"`
	Failed        int        `json:"failed"`
	Fatal         int        `json:"fatal"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// UnitRecord is the published view of a unit within a run.
type UnitRecord struct {
	RunID        string     `json:"run_id"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	Result       *Result    `json:"result,omitempty"`
	DependsOn    string     `json:"depends_on,omitempty"`
	DelayMinutes float64    `json:"delay_minutes"`
	SkippedBy    string     `json:"skipped_by,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
