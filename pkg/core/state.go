package core

import "time"

// Store defines the interface for run-history state operations.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Run operations
	CreateRun(question string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, sql, errMsg string, approved []string) error
	ListRuns(limit int) ([]*Run, error)

	// Iteration operations
	RecordIteration(runID string, seq int, rec IterationRecord) error
	GetIterations(runID string) ([]IterationRecord, error)
}

// RunStatus represents the status of a scope-expansion run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success"
	RunStatusExhausted RunStatus = "exhausted"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one scope-expansion session: a question, the relations
// the sufficiency judge approved, and the SQL that was executed.
type Run struct {
	ID                string
	Question          string
	Status            RunStatus
	ApprovedRelations []string
	SQL               string
	Error             string
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// IterationRecord captures one widening step of a scope-expansion run
// for observability: which depth band was offered, how many candidates
// it held, and what the judge decided.
type IterationRecord struct {
	Depth          int    `json:"depth"`
	CandidateCount int    `json:"candidate_count"`
	Verdict        string `json:"verdict"`
	Reasoning      string `json:"reasoning"`
}
