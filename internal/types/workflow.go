package types

import "time"

// WorkflowState is one state of the enhancement state machine.
type WorkflowState string

const (
	StateReceived       WorkflowState = "received"
	StateParsingJD      WorkflowState = "parsing_jd"
	StateParsingResume  WorkflowState = "parsing_resume"
	StateTagging        WorkflowState = "tagging"
	StateAnalyzingGaps  WorkflowState = "analyzing_gaps"
	StateGeneratingPlan WorkflowState = "generating_plan"
	StateEditing        WorkflowState = "editing_document"
	StateVerifying      WorkflowState = "verifying"
	StateCompleted      WorkflowState = "completed"
	StateFailed         WorkflowState = "failed"
)

// Terminal reports whether the state is a terminal one.
func (s WorkflowState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// WorkflowError is the caller-visible failure reason: an enumerated error
// kind plus a short description, never internal stack detail.
type WorkflowError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SummaryCounts are the cheap aggregates a status query reports without
// loading stage artifacts.
type SummaryCounts struct {
	Gaps       int `json:"gaps"`
	PlannedOps int `json:"plannedOps"`
	AppliedOps int `json:"appliedOps"`
	SkippedOps int `json:"skippedOps"`
}

// WorkflowRecord tracks one enhancement request through the state
// machine. It is owned by the orchestrator; all mutation happens under
// the record store's per-record lock. Once Status is terminal the record
// is immutable.
type WorkflowRecord struct {
	RequestID     string            `json:"requestId"`
	Status        WorkflowState     `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	ArtifactPaths map[string]string `json:"artifactPaths,omitempty"`
	RetryCounts   map[string]int    `json:"retryCounts,omitempty"`
	Error         *WorkflowError    `json:"error,omitempty"`
	Counts        SummaryCounts     `json:"counts"`
	DocumentPath  string            `json:"documentPath,omitempty"`
	Cancelled     bool              `json:"cancelled,omitempty"`
}

// Clone returns a deep copy safe to hand to readers while the
// orchestrator keeps mutating the original.
func (r *WorkflowRecord) Clone() *WorkflowRecord {
	out := *r
	if r.ArtifactPaths != nil {
		out.ArtifactPaths = make(map[string]string, len(r.ArtifactPaths))
		for k, v := range r.ArtifactPaths {
			out.ArtifactPaths[k] = v
		}
	}
	if r.RetryCounts != nil {
		out.RetryCounts = make(map[string]int, len(r.RetryCounts))
		for k, v := range r.RetryCounts {
			out.RetryCounts[k] = v
		}
	}
	if r.Error != nil {
		errCopy := *r.Error
		out.Error = &errCopy
	}
	return &out
}
