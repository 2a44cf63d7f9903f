package ai

import (
	"context"
	"errors"

	"resumeforge/internal/types"
)

// routedProvider splits the two pipeline operations across separately
// configured providers. Summarization and edit proposal can run against
// different models or temperatures while the orchestrator keeps a
// single Provider dependency.
type routedProvider struct {
	summarize Provider
	propose   Provider
}

// NewRoutedProvider returns a Provider that sends SummarizeJob to
// summarize and ProposeEdit to propose. Model info comes from the
// summarize provider since health checks only need one probe.
func NewRoutedProvider(summarize, propose Provider) Provider {
	return &routedProvider{summarize: summarize, propose: propose}
}

func (r *routedProvider) SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *TokenUsage, error) {
	return r.summarize.SummarizeJob(ctx, jobText, strict)
}

func (r *routedProvider) ProposeEdit(ctx context.Context, input ProposeEditInput) (ProposeEditOutput, *TokenUsage, error) {
	return r.propose.ProposeEdit(ctx, input)
}

func (r *routedProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return r.summarize.GetModelInfo(ctx)
}

func (r *routedProvider) Close() error {
	return errors.Join(r.summarize.Close(), r.propose.Close())
}
