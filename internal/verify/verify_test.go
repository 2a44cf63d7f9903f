package verify

import (
	"bytes"
	"strings"
	"testing"

	"resumeforge/internal/editor"
	"resumeforge/internal/errors"
	"resumeforge/internal/extract"
	"resumeforge/internal/structurer"
	"resumeforge/internal/types"
)

func testLogger(t *testing.T) *errors.Logger {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return logger
}

const textResume = `Jane Doe

EXPERIENCE
Senior Engineer
Acme Corp, 2019 - 2024
- Built a data platform serving 2M users
- Led a team of 5 engineers

SKILLS
- Go, Python, SQL

EDUCATION
BSc Computer Science
`

func buildTree(t *testing.T, data []byte) *types.DocumentTree {
	t.Helper()
	model, err := extract.New(testLogger(t)).Extract(data, types.FormatText)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	tree, err := structurer.New(testLogger(t)).Build(model)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	return tree
}

func nodeID(t *testing.T, tree *types.DocumentTree, match func(types.NodeRef) bool) string {
	t.Helper()
	for si := range tree.Sections {
		sec := &tree.Sections[si]
		if match(types.NodeRef{Section: sec}) {
			return sec.ID
		}
		for ei := range sec.Entries {
			entry := &sec.Entries[ei]
			if match(types.NodeRef{Section: sec, Entry: entry}) {
				return entry.ID
			}
			for bi := range entry.Bullets {
				b := &entry.Bullets[bi]
				if match(types.NodeRef{Section: sec, Entry: entry, Bullet: b}) {
					return b.ID
				}
			}
		}
	}
	t.Fatal("no matching node")
	return ""
}

func TestVerifyUnchangedDocumentPasses(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	report, err := New(0.30, testLogger(t)).Verify(tree, data, types.FormatText, types.ApplyResult{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed {
		t.Fatalf("unchanged document must verify clean, got %+v", report.Violations)
	}
	if report.WordDelta != 0 {
		t.Errorf("got word delta %d", report.WordDelta)
	}
	if len(report.DiffSummary) != 0 {
		t.Errorf("got diff summary %+v", report.DiffSummary)
	}
}

func TestVerifyAppliedPlanRoundTrip(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	bulletID := nodeID(t, tree, func(r types.NodeRef) bool {
		return r.Bullet != nil && r.Bullet.Text == "Led a team of 5 engineers"
	})
	entryID := nodeID(t, tree, func(r types.NodeRef) bool {
		return r.Entry != nil && r.Bullet == nil && r.Entry.Title == "Senior Engineer"
	})
	skillsID := nodeID(t, tree, func(r types.NodeRef) bool {
		return r.Entry == nil && r.Section.Title == "SKILLS"
	})

	plan := types.Plan{Operations: []types.EditOperation{
		{Op: types.OpModifyBullet, TargetAnchor: bulletID, PayloadText: "Led a team of 6 engineers"},
		{Op: types.OpInsertBullet, TargetAnchor: entryID, PayloadText: "Migrated workloads to Kubernetes"},
		{Op: types.OpAddSkill, TargetAnchor: skillsID, PayloadText: "Kubernetes"},
	}}

	edited, format, result, err := editor.New(testLogger(t)).Apply(data, types.FormatText, tree, plan)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	report, err := New(0.60, testLogger(t)).Verify(tree, edited, format, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed {
		t.Fatalf("round trip should verify, violations: %+v", report.Violations)
	}
	if report.AppliedCount != 3 || report.SkippedCount != 0 {
		t.Errorf("got counts %d/%d", report.AppliedCount, report.SkippedCount)
	}
	if len(report.AddedSkills) != 1 || report.AddedSkills[0] != "Kubernetes" {
		t.Errorf("got added skills %v", report.AddedSkills)
	}
	if report.WordDelta <= 0 {
		t.Errorf("additive plan should grow the document, got delta %d", report.WordDelta)
	}

	expDiff := report.DiffSummary[nodeID(t, tree, func(r types.NodeRef) bool {
		return r.Entry == nil && r.Section.Title == "EXPERIENCE"
	})]
	if expDiff.Added != 1 || expDiff.Changed != 1 || expDiff.Removed != 0 {
		t.Errorf("got experience diff %+v", expDiff)
	}
}

func TestVerifyDetectsContentLoss(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	mangled := bytes.Replace(data, []byte("- Led a team of 5 engineers\n"), nil, 1)

	report, err := New(0.30, testLogger(t)).Verify(tree, mangled, types.FormatText, types.ApplyResult{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Passed {
		t.Fatal("dropped bullet must fail verification")
	}
	found := false
	for _, v := range report.Violations {
		if v.Rule == RuleContentPreserved {
			found = true
		}
	}
	if !found {
		t.Errorf("expected content_preserved violation, got %+v", report.Violations)
	}
}

func TestVerifyDetectsUntouchedParagraphDrift(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	// Rewrite a role title no operation targeted. Bullets and section
	// headings are intact, so only the digest re-check can see it.
	drifted := bytes.Replace(data, []byte("Senior Engineer"), []byte("Staff Engineer"), 1)

	report, err := New(0.30, testLogger(t)).Verify(tree, drifted, types.FormatText, types.ApplyResult{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Passed {
		t.Fatal("out-of-band paragraph rewrite must fail verification")
	}
	found := false
	for _, v := range report.Violations {
		if v.Rule == RuleAnchorIntegrity {
			found = true
		}
	}
	if !found {
		t.Errorf("expected anchor_integrity violation, got %+v", report.Violations)
	}
}

func TestVerifyDetectsMissingPayload(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	result := types.ApplyResult{Applied: []types.EditOperation{{
		Op:          types.OpAddSkill,
		PayloadText: "Kubernetes",
	}}}

	report, err := New(0.30, testLogger(t)).Verify(tree, data, types.FormatText, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Passed {
		t.Fatal("claimed payload absent from the document must fail")
	}
	if report.Violations[0].Rule != RulePayloadPresent {
		t.Errorf("got %+v", report.Violations)
	}
}

func TestVerifyDetectsExcessGrowth(t *testing.T) {
	data := []byte(textResume)
	tree := buildTree(t, data)

	padding := strings.Repeat("extra words beyond any reasonable budget ", 5)
	bloated := bytes.Replace(data,
		[]byte("- Go, Python, SQL"),
		[]byte("- Go, Python, SQL, "+padding), 1)

	report, err := New(0.30, testLogger(t)).Verify(tree, bloated, types.FormatText, types.ApplyResult{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Passed {
		t.Fatal("oversized growth must fail verification")
	}
	found := false
	for _, v := range report.Violations {
		if v.Rule == RuleSectionGrowth {
			found = true
		}
	}
	if !found {
		t.Errorf("expected section_growth violation, got %+v", report.Violations)
	}
}

func TestVerifyUnreadableDocument(t *testing.T) {
	tree := buildTree(t, []byte(textResume))

	_, err := New(0.30, testLogger(t)).Verify(tree, []byte{0xff, 0xfe}, types.FormatText, types.ApplyResult{})
	if !errors.IsCode(err, errors.ErrCodeVerificationFailed) {
		t.Fatalf("expected VERIFICATION_FAILED, got %v", err)
	}
}
