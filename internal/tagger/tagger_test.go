package tagger

import (
	"testing"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

func testTagger(t *testing.T) *Tagger {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return New(0.72, logger)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		title string
		want  types.SemanticTag
	}{
		{title: "Experience", want: types.TagExperience},
		{title: "EXPERIENCE", want: types.TagExperience},
		{title: "Professional Experience", want: types.TagExperience},
		{title: "Work History", want: types.TagExperience},
		{title: "Experience & Leadership", want: types.TagExperience},
		{title: "Skills", want: types.TagSkills},
		{title: "Technical Skills", want: types.TagSkills},
		{title: "Core Competencies", want: types.TagSkills},
		{title: "Summary", want: types.TagSummary},
		{title: "Professional Summary", want: types.TagSummary},
		{title: "About Me", want: types.TagSummary},
		{title: "Education", want: types.TagEducation},
		{title: "Projects", want: types.TagProjects},
		{title: "Licenses and Certifications", want: types.TagCertifications},
		{title: "Hobbies", want: types.TagOther},
		{title: "References", want: types.TagOther},
		{title: "", want: types.TagOther},
	}

	tg := testTagger(t)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := tg.classify(tt.title); got != tt.want {
				t.Errorf("classify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestClassifyTieBreakIsDeterministic(t *testing.T) {
	// "Skills Summary" scores 1.0 against both the skills and the
	// summary synonyms; the fixed tag order must decide the tie the
	// same way on every run.
	tg := testTagger(t)
	for i := 0; i < 200; i++ {
		if got := tg.classify("Skills Summary"); got != types.TagSkills {
			t.Fatalf("run %d: classify(\"Skills Summary\") = %q, want %q", i, got, types.TagSkills)
		}
	}
}

func TestTagPopulatesAllSections(t *testing.T) {
	tree := &types.DocumentTree{
		Sections: []types.Section{
			{ID: "s0", Title: "Profile", OrderIndex: 0},
			{ID: "s1", Title: "Experience", OrderIndex: 1},
			{ID: "s2", Title: "Volunteering", OrderIndex: 2},
		},
	}

	tagged := testTagger(t).Tag(tree)

	if tagged.Sections[0].Tag != types.TagSummary {
		t.Errorf("Profile should tag as summary, got %q", tagged.Sections[0].Tag)
	}
	if tagged.Sections[1].Tag != types.TagExperience {
		t.Errorf("Experience should tag as experience, got %q", tagged.Sections[1].Tag)
	}
	if tagged.Sections[2].Tag != types.TagOther {
		t.Errorf("Volunteering should tag as other, got %q", tagged.Sections[2].Tag)
	}
}

func TestTagNormalizesSkillItems(t *testing.T) {
	tree := &types.DocumentTree{
		Sections: []types.Section{
			{
				ID: "s0", Title: "Skills", OrderIndex: 0,
				Entries: []types.Entry{
					{
						ID: "s0e0", OrderIndex: 0,
						Bullets: []types.Bullet{
							{ID: "s0e0b0", Text: "Go, SQL; Docker | CI/CD", OrderIndex: 0},
							{ID: "s0e0b1", Text: "go,  Kubernetes , sql", OrderIndex: 1},
						},
					},
				},
			},
			{
				ID: "s1", Title: "Experience", OrderIndex: 1,
				Entries: []types.Entry{
					{ID: "s1e0", Title: "Engineer", OrderIndex: 0, Bullets: []types.Bullet{
						{ID: "s1e0b0", Text: "Shipped things, often", OrderIndex: 0},
					}},
				},
			},
		},
	}

	tagged := testTagger(t).Tag(tree)

	want := []string{"Go", "SQL", "Docker", "CI/CD", "Kubernetes"}
	got := tagged.Sections[0].SkillItems
	if len(got) != len(want) {
		t.Fatalf("got skill items %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d: got %q, want %q (full list %v)", i, got[i], want[i], got)
		}
	}
	if tagged.Sections[1].SkillItems != nil {
		t.Errorf("non-skills section should not carry skill items, got %v", tagged.Sections[1].SkillItems)
	}
}
