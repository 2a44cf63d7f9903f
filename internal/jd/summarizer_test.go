package jd

import (
	"context"
	"testing"

	"resumeforge/internal/ai"
	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

type fakeProvider struct {
	calls      []bool // strict flag per call
	failFirst  bool   // first call returns a malformed-response error
	failAlways bool
	summary    types.RequirementSummary
}

func (f *fakeProvider) SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *ai.TokenUsage, error) {
	f.calls = append(f.calls, strict)
	if f.failAlways || (f.failFirst && len(f.calls) == 1) {
		return types.RequirementSummary{}, nil,
			errors.NewAIError(ai.ErrCodeResponseInvalid, "response did not match schema", nil)
	}
	return f.summary, nil, nil
}

func (f *fakeProvider) ProposeEdit(ctx context.Context, input ai.ProposeEditInput) (ai.ProposeEditOutput, *ai.TokenUsage, error) {
	return ai.ProposeEditOutput{}, nil, nil
}

func (f *fakeProvider) GetModelInfo(ctx context.Context) *ai.ModelInfo { return nil }
func (f *fakeProvider) Close() error                                  { return nil }

func testSummarizer(t *testing.T, provider ai.Provider) *Summarizer {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return New(provider, logger)
}

const sampleJD = `Senior Backend Engineer

We are looking for an engineer with 6+ years of experience.
Requirements: strong Go and PostgreSQL skills, Kubernetes in production.
Kubernetes experience running large clusters.
Nice to have: Kafka and GraphQL.
`

func TestSummarizeEmptyInput(t *testing.T) {
	_, err := testSummarizer(t, &fakeProvider{}).Summarize(context.Background(), "   \n ")
	if !errors.IsCode(err, errors.ErrCodeSummarizationFailed) {
		t.Fatalf("expected SUMMARIZATION_FAILED, got %v", err)
	}
}

func TestSummarizeNormalizesProviderOutput(t *testing.T) {
	provider := &fakeProvider{summary: types.RequirementSummary{
		MustHaveSkills:   []string{"Go", "go", " Kubernetes "},
		NiceToHaveSkills: []string{"Kafka", "Go"},
		KeywordWeights:   map[string]float64{"Go": 1.5, "Kafka": -0.2},
	}}

	summary, err := testSummarizer(t, provider).Summarize(context.Background(), sampleJD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summary.MustHaveSkills) != 2 {
		t.Errorf("duplicates should collapse, got %v", summary.MustHaveSkills)
	}
	if len(summary.NiceToHaveSkills) != 1 || summary.NiceToHaveSkills[0] != "Kafka" {
		t.Errorf("must-have wins over nice-to-have, got %v", summary.NiceToHaveSkills)
	}
	if summary.KeywordWeights["Go"] != 1 || summary.KeywordWeights["Kafka"] != 0 {
		t.Errorf("weights should clamp to [0,1], got %v", summary.KeywordWeights)
	}
	if summary.SeniorityLevel != types.SeniorityMid {
		t.Errorf("missing seniority should default to mid, got %q", summary.SeniorityLevel)
	}
	if summary.Degraded {
		t.Error("provider-produced summary must not be marked degraded")
	}
}

func TestSummarizeStrictRetryAfterMalformedResponse(t *testing.T) {
	provider := &fakeProvider{
		failFirst: true,
		summary: types.RequirementSummary{
			MustHaveSkills: []string{"Go"},
			SeniorityLevel: types.SenioritySenior,
		},
	}

	summary, err := testSummarizer(t, provider).Summarize(context.Background(), sampleJD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(provider.calls))
	}
	if provider.calls[0] != false || provider.calls[1] != true {
		t.Fatalf("second call should be strict, got %v", provider.calls)
	}
	if summary.Degraded {
		t.Error("strict retry succeeded, summary must not be degraded")
	}
}

func TestSummarizeFallsBackToHeuristic(t *testing.T) {
	provider := &fakeProvider{failAlways: true}

	summary, err := testSummarizer(t, provider).Summarize(context.Background(), sampleJD)
	if err != nil {
		t.Fatalf("heuristic fallback must not fail on non-empty input: %v", err)
	}
	if !summary.Degraded {
		t.Fatal("heuristic summary must be marked degraded")
	}
	if len(provider.calls) != 2 {
		t.Errorf("got %d provider calls, want 2 (initial + strict)", len(provider.calls))
	}

	wantMust := map[string]bool{"Go": true, "PostgreSQL": true, "Kubernetes": true}
	for _, skill := range summary.MustHaveSkills {
		if !wantMust[skill] {
			t.Errorf("unexpected must-have %q", skill)
		}
		delete(wantMust, skill)
	}
	if len(wantMust) != 0 {
		t.Errorf("missing must-haves: %v", wantMust)
	}

	wantNice := map[string]bool{"Kafka": true, "GraphQL": true}
	for _, skill := range summary.NiceToHaveSkills {
		if !wantNice[skill] {
			t.Errorf("unexpected nice-to-have %q", skill)
		}
	}
	if summary.SeniorityLevel != types.SenioritySenior {
		t.Errorf("got seniority %q", summary.SeniorityLevel)
	}
	if summary.KeywordWeights["Kubernetes"] != 1 {
		t.Errorf("most frequent keyword should carry weight 1, got %v", summary.KeywordWeights)
	}
}

func TestInferSeniority(t *testing.T) {
	tests := []struct {
		text string
		want types.SeniorityLevel
	}{
		{"Staff Engineer, Infrastructure", types.SeniorityStaffPlus},
		{"Principal architect role", types.SeniorityStaffPlus},
		{"Senior Backend Engineer", types.SenioritySenior},
		{"Junior developer position", types.SeniorityJunior},
		{"Entry-level role for recent grads", types.SeniorityJunior},
		{"Engineer with 10+ years of experience", types.SeniorityStaffPlus},
		{"requires 6 years experience", types.SenioritySenior},
		{"2 years of experience preferred", types.SeniorityJunior},
		{"Backend Engineer", types.SeniorityMid},
	}
	for _, tt := range tests {
		if got := inferSeniority(tt.text); got != tt.want {
			t.Errorf("inferSeniority(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSummarizeNilProviderUsesHeuristic(t *testing.T) {
	summary, err := testSummarizer(t, nil).Summarize(context.Background(), sampleJD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Degraded {
		t.Error("nil provider must produce a degraded summary")
	}
}
