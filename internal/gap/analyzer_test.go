package gap

import (
	"reflect"
	"testing"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	ratios := map[string]float64{
		"junior": 0, "mid": 0.25, "senior": 0.35, "staff+": 0.45,
	}
	return New(ratios, logger)
}

func sampleTree() *types.DocumentTree {
	return &types.DocumentTree{
		Format: types.FormatText,
		Sections: []types.Section{
			{
				ID: "s0", Title: "EXPERIENCE", Tag: types.TagExperience, OrderIndex: 0,
				Entries: []types.Entry{
					{
						ID: "s0e0", Title: "Senior Engineer", Subtitle: "Acme Corp, 2019 - 2024", OrderIndex: 0,
						Bullets: []types.Bullet{
							{ID: "s0e0b0", Text: "Built a Python data platform serving 2M users", OrderIndex: 0},
							{ID: "s0e0b1", Text: "Reduced p99 latency by 40%", OrderIndex: 1},
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
							{ID: "s1e0b0", Text: "Python, SQL, Golang", OrderIndex: 0},
						},
					},
				},
			},
		},
	}
}

func TestAnalyzeMissingMustHave(t *testing.T) {
	summary := types.RequirementSummary{
		MustHaveSkills: []string{"Kubernetes"},
		SeniorityLevel: types.SeniorityJunior,
	}

	gaps := testAnalyzer(t).Analyze(sampleTree(), summary)

	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	g := gaps[0]
	if g.Kind != types.GapMissingSkill {
		t.Errorf("got kind %q, want missing_skill", g.Kind)
	}
	if g.Subject != "Kubernetes" {
		t.Errorf("got subject %q", g.Subject)
	}
	if g.SuggestedTarget != "s1" {
		t.Errorf("missing skill should target the skills section, got %q", g.SuggestedTarget)
	}
	if g.Severity < 0.7 {
		t.Errorf("must-have severity %v too low", g.Severity)
	}
}

func TestAnalyzeAlreadySatisfiedSkill(t *testing.T) {
	summary := types.RequirementSummary{
		MustHaveSkills: []string{"Python"},
		SeniorityLevel: types.SeniorityJunior,
	}

	gaps := testAnalyzer(t).Analyze(sampleTree(), summary)

	if len(gaps) != 0 {
		t.Fatalf("a skill already on the resume must not produce a gap, got %+v", gaps)
	}
}

func TestAnalyzeTerminologyMismatch(t *testing.T) {
	// The resume says "Golang", the job description says "Go".
	summary := types.RequirementSummary{
		MustHaveSkills: []string{"Go"},
		SeniorityLevel: types.SeniorityJunior,
	}

	gaps := testAnalyzer(t).Analyze(sampleTree(), summary)

	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	if gaps[0].Kind != types.GapTerminologyMismatch {
		t.Errorf("got kind %q, want terminology_mismatch", gaps[0].Kind)
	}
}

func TestAnalyzeWeakEvidence(t *testing.T) {
	tree := sampleTree()
	// Strip the quantified bullets so the senior-level ratio fails.
	tree.Sections[0].Entries[0].Bullets = []types.Bullet{
		{ID: "s0e0b0", Text: "Worked on the data platform", OrderIndex: 0},
		{ID: "s0e0b1", Text: "Helped with deployments", OrderIndex: 1},
	}
	summary := types.RequirementSummary{SeniorityLevel: types.SenioritySenior}

	gaps := testAnalyzer(t).Analyze(tree, summary)

	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	g := gaps[0]
	if g.Kind != types.GapWeakEvidence {
		t.Errorf("got kind %q, want weak_evidence", g.Kind)
	}
	if g.SuggestedTarget != "s0e0" {
		t.Errorf("weak evidence should target the entry, got %q", g.SuggestedTarget)
	}
	if g.Subject != "Senior Engineer" {
		t.Errorf("got subject %q", g.Subject)
	}
}

func TestAnalyzeJuniorSkipsWeakEvidence(t *testing.T) {
	tree := sampleTree()
	tree.Sections[0].Entries[0].Bullets = []types.Bullet{
		{ID: "s0e0b0", Text: "Worked on things", OrderIndex: 0},
	}
	summary := types.RequirementSummary{SeniorityLevel: types.SeniorityJunior}

	if gaps := testAnalyzer(t).Analyze(tree, summary); len(gaps) != 0 {
		t.Fatalf("junior threshold is zero, expected no weak-evidence gaps, got %+v", gaps)
	}
}

func TestAnalyzeOrderingIsStable(t *testing.T) {
	summary := types.RequirementSummary{
		MustHaveSkills:   []string{"Kubernetes", "Terraform", "AWS"},
		NiceToHaveSkills: []string{"Kafka", "Redis"},
		SeniorityLevel:   types.SenioritySenior,
		KeywordWeights:   map[string]float64{"Kubernetes": 0.9, "AWS": 0.6},
	}

	a := testAnalyzer(t)
	first := a.Analyze(sampleTree(), summary)
	second := a.Analyze(sampleTree(), summary)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different gap lists:\n%+v\n%+v", first, second)
	}

	for i := 1; i < len(first); i++ {
		if first[i].Severity > first[i-1].Severity {
			t.Fatalf("gaps not sorted by severity descending: %+v", first)
		}
	}
	if len(first) == 0 || first[0].Subject != "Kubernetes" {
		t.Fatalf("highest-weighted must-have should rank first, got %+v", first)
	}
}

func TestAnalyzeExplicitZeroWeight(t *testing.T) {
	a := testAnalyzer(t)

	weighted := types.RequirementSummary{
		MustHaveSkills: []string{"Kubernetes"},
		SeniorityLevel: types.SeniorityJunior,
		KeywordWeights: map[string]float64{"Kubernetes": 0},
	}
	unweighted := types.RequirementSummary{
		MustHaveSkills: []string{"Kubernetes"},
		SeniorityLevel: types.SeniorityJunior,
	}

	zero := a.Analyze(sampleTree(), weighted)
	absent := a.Analyze(sampleTree(), unweighted)
	if len(zero) != 1 || len(absent) != 1 {
		t.Fatalf("expected one gap each, got %d and %d", len(zero), len(absent))
	}
	if zero[0].Severity != 0.7 {
		t.Errorf("explicit zero weight: severity %v, want 0.7", zero[0].Severity)
	}
	if absent[0].Severity <= zero[0].Severity {
		t.Errorf("absent weight should use the 0.5 default and rank above an explicit zero: %v vs %v",
			absent[0].Severity, zero[0].Severity)
	}
}

func TestContainsTermWordBoundaries(t *testing.T) {
	tests := []struct {
		text, term string
		want       bool
	}{
		{"worked at google on search", "go", false},
		{"wrote go services", "go", true},
		{"go, python, sql", "go", true},
		{"golang enthusiast", "go", false},
		{"used k8s daily", "k8s", true},
		{"amazon web services certified", "amazon web services", true},
		{"", "go", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		if got := ContainsTerm(tt.text, tt.term); got != tt.want {
			t.Errorf("ContainsTerm(%q, %q) = %v, want %v", tt.text, tt.term, got, tt.want)
		}
	}
}

func TestIsQuantified(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Reduced costs by 30%", true},
		{"Led a team of engineers", true},
		{"Improved throughput across services", true},
		{"Worked on internal tools", false},
		{"Maintained documentation", false},
	}
	for _, tt := range tests {
		if got := IsQuantified(tt.text); got != tt.want {
			t.Errorf("IsQuantified(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
