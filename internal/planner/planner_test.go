package planner

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"resumeforge/internal/ai"
	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// fakeProvider returns canned phrasings without network access.
type fakeProvider struct {
	fail  bool
	calls int
}

func (f *fakeProvider) SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *ai.TokenUsage, error) {
	return types.RequirementSummary{}, nil, nil
}

func (f *fakeProvider) ProposeEdit(ctx context.Context, input ai.ProposeEditInput) (ai.ProposeEditOutput, *ai.TokenUsage, error) {
	f.calls++
	if f.fail {
		return ai.ProposeEditOutput{}, nil, fmt.Errorf("provider down")
	}
	switch input.Op {
	case types.OpModifyBullet:
		if input.GapKind == types.GapWeakEvidence {
			return ai.ProposeEditOutput{
				Text:      input.ExistingBullet + ", cutting build times by 30%",
				Rationale: "quantified the outcome",
			}, nil, nil
		}
		return ai.ProposeEditOutput{
			Text: strings.ReplaceAll(input.ExistingBullet, "Golang", "Go"),
		}, nil, nil
	default:
		return ai.ProposeEditOutput{
			Text: "Deployed services to " + input.Subject + " clusters",
		}, nil, nil
	}
}

func (f *fakeProvider) GetModelInfo(ctx context.Context) *ai.ModelInfo { return nil }
func (f *fakeProvider) Close() error                                  { return nil }

func testPlanner(t *testing.T, provider ai.Provider) *Planner {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return New(provider, logger)
}

func defaultConstraints() Constraints {
	return Constraints{SectionGrowthLimit: 0.30, MaxNewBullets: 5, MaxBulletsPerEntry: 8}
}

func planTree() *types.DocumentTree {
	return &types.DocumentTree{
		Format: types.FormatText,
		Sections: []types.Section{
			{
				ID: "s0", Title: "EXPERIENCE", Tag: types.TagExperience, OrderIndex: 0,
				Entries: []types.Entry{
					{
						ID: "s0e0", Title: "Senior Engineer", Subtitle: "Acme Corp, 2019 - 2024", OrderIndex: 0,
						Bullets: []types.Bullet{
							{ID: "s0e0b0", Text: "Built a data platform in Golang serving 40 internal teams", OrderIndex: 0},
							{ID: "s0e0b1", Text: "Maintained CI pipelines", OrderIndex: 1},
						},
					},
				},
			},
			{
				ID: "s1", Title: "SKILLS", Tag: types.TagSkills, OrderIndex: 1,
				Entries: []types.Entry{
					{
						ID: "s1e0", OrderIndex: 0,
						Bullets: []types.Bullet{
							{ID: "s1e0b0", Text: "Python, SQL, Golang, Docker and more tools", OrderIndex: 0},
						},
					},
				},
			},
			{
				ID: "s2", Title: "Hobbies", Tag: types.TagOther, OrderIndex: 2,
				Entries: []types.Entry{
					{ID: "s2e0", Title: "Chess and photography", OrderIndex: 0},
				},
			},
		},
	}
}

func TestGenerateEmptyGaps(t *testing.T) {
	plan, err := testPlanner(t, &fakeProvider{}).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, nil, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 0 || len(plan.Dropped) != 0 {
		t.Fatalf("empty gap list should yield an empty plan, got %+v", plan)
	}
}

func TestGenerateAddSkill(t *testing.T) {
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s1"},
	}

	plan, err := testPlanner(t, &fakeProvider{}).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan)
	}
	op := plan.Operations[0]
	if op.Op != types.OpAddSkill {
		t.Errorf("skills-section target should use add_skill, got %q", op.Op)
	}
	if op.TargetAnchor != "s1" {
		t.Errorf("got anchor %q", op.TargetAnchor)
	}
	if op.PayloadText == "" {
		t.Error("payload text is empty")
	}
}

func TestGenerateInsertBulletWhenNoSkillsSection(t *testing.T) {
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s0e0"},
	}

	plan, err := testPlanner(t, &fakeProvider{}).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Operations) != 1 || plan.Operations[0].Op != types.OpInsertBullet {
		t.Fatalf("entry target should use insert_bullet, got %+v", plan)
	}
}

func TestGenerateWeavesSkillIntoRelatedBullet(t *testing.T) {
	// When a bullet already mentions other required skills, a missing
	// skill with an entry target is woven into that bullet instead of
	// growing the entry with a new one.
	summary := types.RequirementSummary{
		MustHaveSkills: []string{"Kubernetes", "Go"},
		SeniorityLevel: types.SenioritySenior,
	}
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s0e0"},
	}

	plan, err := testPlanner(t, nil).Generate(
		context.Background(), planTree(), summary, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan)
	}
	op := plan.Operations[0]
	if op.Op != types.OpModifyBullet {
		t.Fatalf("related bullet should be modified, not inserted after, got %q", op.Op)
	}
	if op.TargetAnchor != "s0e0b0" {
		t.Errorf("should target the bullet mentioning Golang, got %q", op.TargetAnchor)
	}
	if !strings.HasPrefix(op.PayloadText, "Built a data platform in Golang serving 40 internal teams") {
		t.Errorf("weave must keep the original bullet text: %q", op.PayloadText)
	}
	if !strings.Contains(op.PayloadText, "Kubernetes") {
		t.Errorf("weave must mention the missing skill: %q", op.PayloadText)
	}
}

func TestGenerateDropsDuplicateSkill(t *testing.T) {
	tree := planTree()
	tree.Sections[1].SkillItems = []string{"Python", "SQL", "Golang", "Docker", "Kubernetes"}

	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "kubernetes", Severity: 0.9, SuggestedTarget: "s1"},
	}

	plan, err := testPlanner(t, nil).Generate(
		context.Background(), tree, types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 0 {
		t.Fatalf("a listed skill must not be added again, got %+v", plan.Operations)
	}
	if len(plan.Dropped) != 1 || plan.Dropped[0].Constraint != ConstraintDuplicateSkill {
		t.Fatalf("expected duplicate_skill drop, got %+v", plan.Dropped)
	}
}

func TestGenerateTerminologyModifiesBullet(t *testing.T) {
	gaps := []types.Gap{
		{Kind: types.GapTerminologyMismatch, Subject: "Go", Severity: 0.4, SuggestedTarget: "s1"},
	}

	plan, err := testPlanner(t, nil).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan)
	}
	op := plan.Operations[0]
	if op.Op != types.OpModifyBullet {
		t.Fatalf("got op %q, want modify_bullet", op.Op)
	}
	if op.TargetAnchor != "s0e0b0" {
		t.Errorf("should target the bullet containing the synonym, got %q", op.TargetAnchor)
	}
	if !strings.Contains(op.PayloadText, "Go ") && !strings.HasSuffix(op.PayloadText, "Go") {
		t.Errorf("payload should use the canonical spelling: %q", op.PayloadText)
	}
	if strings.Contains(op.PayloadText, "Golang") {
		t.Errorf("payload still contains the old spelling: %q", op.PayloadText)
	}
}

func TestGenerateWeakEvidenceNeedsProvider(t *testing.T) {
	gaps := []types.Gap{
		{Kind: types.GapWeakEvidence, Subject: "Senior Engineer", Severity: 0.5, SuggestedTarget: "s0e0"},
	}

	// Without a provider there is no honest rewrite; the op is dropped.
	plan, err := testPlanner(t, nil).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 0 || len(plan.Dropped) != 1 {
		t.Fatalf("expected a dropped op, got %+v", plan)
	}
	if plan.Dropped[0].Constraint != ConstraintNoPhrasing {
		t.Errorf("got constraint %q", plan.Dropped[0].Constraint)
	}

	// With a provider the bullet gets rewritten in place.
	plan, err = testPlanner(t, &fakeProvider{}).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 1 || plan.Operations[0].Op != types.OpModifyBullet {
		t.Fatalf("expected one modify_bullet, got %+v", plan)
	}
	if plan.Operations[0].TargetAnchor != "s0e0b1" {
		t.Errorf("should target the first unquantified bullet, got %q", plan.Operations[0].TargetAnchor)
	}
}

func TestGenerateRejectsUntaggedSections(t *testing.T) {
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s2e0"},
	}

	plan, err := testPlanner(t, &fakeProvider{}).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 0 {
		t.Fatalf("operations must never target an untagged section, got %+v", plan.Operations)
	}
	if len(plan.Dropped) != 1 || plan.Dropped[0].Constraint != ConstraintTaggedSectionOnly {
		t.Fatalf("expected tagged_section_only drop, got %+v", plan.Dropped)
	}
}

func TestGenerateEnforcesMaxNewBullets(t *testing.T) {
	var gaps []types.Gap
	for _, skill := range []string{"Kafka", "Redis", "Spark"} {
		gaps = append(gaps, types.Gap{
			Kind: types.GapMissingSkill, Subject: skill, Severity: 0.8, SuggestedTarget: "s0e0",
		})
	}

	c := defaultConstraints()
	c.MaxNewBullets = 2
	c.SectionGrowthLimit = 5 // keep growth out of the way

	plan, err := testPlanner(t, nil).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Operations) != 2 {
		t.Fatalf("got %d operations, want 2", len(plan.Operations))
	}
	if len(plan.Dropped) != 1 || plan.Dropped[0].Constraint != ConstraintMaxNewBullets {
		t.Fatalf("expected max_new_bullets drop, got %+v", plan.Dropped)
	}
}

func TestGenerateEnforcesSectionGrowth(t *testing.T) {
	var gaps []types.Gap
	for _, skill := range []string{"Kafka", "Redis", "Spark", "Flink", "Beam"} {
		gaps = append(gaps, types.Gap{
			Kind: types.GapMissingSkill, Subject: skill, Severity: 0.8, SuggestedTarget: "s1",
		})
	}

	// Skills section has 8 words; a 30% budget admits 2 added words.
	plan, err := testPlanner(t, nil).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Operations) != 2 {
		t.Fatalf("got %d operations, want 2: %+v", len(plan.Operations), plan.Operations)
	}
	for _, d := range plan.Dropped {
		if d.Constraint != ConstraintSectionGrowth {
			t.Errorf("got constraint %q, want section_growth_limit", d.Constraint)
		}
	}
	if len(plan.Dropped) != 3 {
		t.Fatalf("got %d dropped, want 3", len(plan.Dropped))
	}
}

func TestGenerateEnforcesMaxBulletsPerEntry(t *testing.T) {
	tree := planTree()
	entry := &tree.Sections[0].Entries[0]
	for i := len(entry.Bullets); i < 8; i++ {
		entry.Bullets = append(entry.Bullets, types.Bullet{
			ID: fmt.Sprintf("s0e0b%d", i), Text: "Shipped another milestone release", OrderIndex: i,
		})
	}

	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kafka", Severity: 0.8, SuggestedTarget: "s0e0"},
	}
	c := defaultConstraints()
	c.SectionGrowthLimit = 5

	plan, err := testPlanner(t, nil).Generate(
		context.Background(), tree, types.RequirementSummary{}, gaps, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Dropped) != 1 || plan.Dropped[0].Constraint != ConstraintMaxBulletsEntry {
		t.Fatalf("expected max_bullets_per_entry drop, got %+v", plan)
	}
}

func TestGenerateTemplateFallbackOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{fail: true}
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s0e0"},
	}

	plan, err := testPlanner(t, provider).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider should have been tried once, got %d calls", provider.calls)
	}
	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan)
	}
	if got := plan.Operations[0].PayloadText; got != "Worked with Kubernetes on recent projects" {
		t.Fatalf("failed phrasing should fall back to the template payload, got %q", got)
	}
}

func TestGenerateAddSkillSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	gaps := []types.Gap{
		{Kind: types.GapMissingSkill, Subject: "Kubernetes", Severity: 0.9, SuggestedTarget: "s1"},
	}

	plan, err := testPlanner(t, provider).Generate(
		context.Background(), planTree(), types.RequirementSummary{}, gaps, defaultConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("add_skill needs no phrasing call, got %d", provider.calls)
	}
	if len(plan.Operations) != 1 || plan.Operations[0].PayloadText != "Kubernetes" {
		t.Fatalf("got %+v", plan)
	}
}

func TestTightenedConstraints(t *testing.T) {
	c := defaultConstraints().Tightened()
	if c.SectionGrowthLimit != 0.15 {
		t.Errorf("got growth limit %v", c.SectionGrowthLimit)
	}
	if c.MaxNewBullets != 2 {
		t.Errorf("got max new bullets %d", c.MaxNewBullets)
	}
	if c.MaxBulletsPerEntry != 8 {
		t.Errorf("per-entry cap should not tighten, got %d", c.MaxBulletsPerEntry)
	}
}
