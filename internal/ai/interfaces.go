package ai

import (
	"context"

	"resumeforge/internal/types"
)

// Provider is the narrow capability interface the pipeline depends on.
// Deterministic fakes implement it in tests so no stage needs network
// access to be exercised.
type Provider interface {
	// SummarizeJob extracts a normalized requirement summary from raw
	// job-description text. strict requests a more literal, schema-
	// obedient completion and is used for the single repair retry after
	// a malformed response.
	SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *TokenUsage, error)

	// ProposeEdit phrases one edit payload for a gap. The caller decides
	// placement and enforces constraints; the provider only writes text.
	ProposeEdit(ctx context.Context, input ProposeEditInput) (ProposeEditOutput, *TokenUsage, error)

	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// ProposeEditInput carries the context a phrasing call needs.
type ProposeEditInput struct {
	Op             types.OpKind
	GapKind        types.GapKind
	Subject        string
	Seniority      types.SeniorityLevel
	SectionTitle   string
	EntryTitle     string
	ExistingBullet string // set for modify_bullet; the text being reworked
}

// ProposeEditOutput is the provider's phrasing for one operation.
type ProposeEditOutput struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
}
