// Package verify re-parses the edited document and checks it against
// the pre-edit tree and the applied operations: payloads landed where
// they were aimed, nothing was lost, structure and size stayed within
// bounds. A failed report is data, not an error; the orchestrator
// decides what to do with it.
package verify

import (
	"fmt"

	"resumeforge/internal/errors"
	"resumeforge/internal/extract"
	"resumeforge/internal/structurer"
	"resumeforge/internal/types"
)

// Rule names recorded in violations.
const (
	RulePayloadPresent   = "payload_present"
	RuleSectionOrder     = "section_order"
	RuleContentPreserved = "content_preserved"
	RuleSectionGrowth    = "section_growth"
	RuleAnchorIntegrity  = "anchor_integrity"
)

// Verifier checks an edited document against the plan that produced it.
type Verifier struct {
	extractor   *extract.Extractor
	structurer  *structurer.Structurer
	growthLimit float64
	logger      *errors.Logger
}

// New creates a Verifier. growthLimit is the same per-section fractional
// word budget the planner enforced.
func New(growthLimit float64, logger *errors.Logger) *Verifier {
	return &Verifier{
		extractor:   extract.New(logger),
		structurer:  structurer.New(logger),
		growthLimit: growthLimit,
		logger:      logger,
	}
}

// Verify re-extracts the edited bytes and produces the report. An
// unreadable edited document is a hard error; everything else is a
// violation inside the report.
func (v *Verifier) Verify(before *types.DocumentTree, edited []byte, format types.DocFormat, result types.ApplyResult) (types.VerificationReport, error) {
	report := types.VerificationReport{
		DiffSummary:  make(map[string]types.SectionDiff),
		AppliedCount: len(result.Applied),
		SkippedCount: len(result.Skipped),
	}

	model, err := v.extractor.Extract(edited, format)
	if err != nil {
		return report, errors.NewPipelineError(errors.ErrCodeVerificationFailed,
			"edited document is not parseable", err)
	}
	after, err := v.structurer.Build(model)
	if err != nil {
		return report, errors.NewPipelineError(errors.ErrCodeVerificationFailed,
			"edited document lost its structure", err)
	}

	report.WordDelta = after.WordCount() - before.WordCount()

	v.checkPayloads(&report, after, result)
	v.checkSections(&report, before, after, result)
	v.checkDigests(&report, before, model, result)
	report.AddedSkills = addedSkills(result)

	report.Passed = len(report.Violations) == 0

	v.logger.Info("verification finished",
		"passed", report.Passed,
		"violations", len(report.Violations),
		"word_delta", report.WordDelta)

	return report, nil
}

// checkPayloads confirms every applied payload is readable back out of
// the edited document.
func (v *Verifier) checkPayloads(report *types.VerificationReport, after *types.DocumentTree, result types.ApplyResult) {
	for _, op := range result.Applied {
		if !after.ContainsText(op.PayloadText) {
			report.Violations = append(report.Violations, types.Violation{
				Rule:   RulePayloadPresent,
				Detail: fmt.Sprintf("%s payload %q not found in edited document", op.Op, op.PayloadText),
			})
		}
	}
}

// checkSections pairs sections positionally and checks order, content
// preservation, and growth, filling the per-section diff summary.
func (v *Verifier) checkSections(report *types.VerificationReport, before, after *types.DocumentTree, result types.ApplyResult) {
	if len(before.Sections) != len(after.Sections) {
		report.Violations = append(report.Violations, types.Violation{
			Rule:   RuleSectionOrder,
			Detail: fmt.Sprintf("section count changed from %d to %d", len(before.Sections), len(after.Sections)),
		})
		return
	}

	modified := modifiedBulletTexts(before, result)

	for si := range before.Sections {
		b := &before.Sections[si]
		a := &after.Sections[si]

		if types.NormalizeText(b.Title) != types.NormalizeText(a.Title) {
			report.Violations = append(report.Violations, types.Violation{
				Rule:   RuleSectionOrder,
				Detail: fmt.Sprintf("section %d title changed from %q to %q", si, b.Title, a.Title),
			})
			continue
		}

		diff := sectionDiff(b, a, modified)
		if diff != (types.SectionDiff{}) {
			report.DiffSummary[b.ID] = diff
		}
		if diff.Removed > 0 {
			report.Violations = append(report.Violations, types.Violation{
				Rule:   RuleContentPreserved,
				Detail: fmt.Sprintf("section %q lost %d bullet(s)", b.Title, diff.Removed),
			})
		}

		beforeWords, afterWords := b.WordCount(), a.WordCount()
		budget := int(float64(beforeWords) * v.growthLimit)
		if beforeWords > 0 && afterWords-beforeWords > budget {
			report.Violations = append(report.Violations, types.Violation{
				Rule: RuleSectionGrowth,
				Detail: fmt.Sprintf("section %q grew by %d words, budget %d",
					b.Title, afterWords-beforeWords, budget),
			})
		}
	}
}

// checkDigests re-hashes the edited paragraphs and confirms every
// paragraph the plan did not touch still carries its frozen digest.
// Drift in an untouched paragraph means something outside the applied
// operations rewrote the document.
func (v *Verifier) checkDigests(report *types.VerificationReport, before *types.DocumentTree, model *types.StructuralModel, result types.ApplyResult) {
	remaining := make(map[string]int, len(model.Paragraphs))
	for _, p := range model.Paragraphs {
		remaining[p.Digest]++
	}

	touched := touchedDigests(before, result)

	check := func(h types.FormattingHandle, what string) {
		if h.Digest == "" || touched[h.Digest] {
			return
		}
		if remaining[h.Digest] <= 0 {
			report.Violations = append(report.Violations, types.Violation{
				Rule:   RuleAnchorIntegrity,
				Detail: fmt.Sprintf("%s drifted from its recorded digest with no operation targeting it", what),
			})
			return
		}
		remaining[h.Digest]--
	}

	for si := range before.Sections {
		sec := &before.Sections[si]
		check(sec.Handle, fmt.Sprintf("section %q heading", sec.Title))
		for ei := range sec.Entries {
			entry := &sec.Entries[ei]
			if entry.Title != "" || entry.Subtitle != "" {
				check(entry.Handle, fmt.Sprintf("entry %q", entry.Title))
			}
			for bi := range entry.Bullets {
				b := &entry.Bullets[bi]
				check(b.Handle, fmt.Sprintf("bullet %q", b.Text))
			}
		}
	}
}

// touchedDigests collects the frozen digests of paragraphs the applied
// operations legitimately rewrote: modify targets and the list line an
// add_skill extends.
func touchedDigests(before *types.DocumentTree, result types.ApplyResult) map[string]bool {
	touched := make(map[string]bool)
	for _, op := range result.Applied {
		ref, ok := before.FindNode(op.TargetAnchor)
		if !ok {
			continue
		}
		switch op.Op {
		case types.OpModifyBullet:
			if ref.Bullet != nil {
				touched[ref.Bullet.Handle.Digest] = true
			}
		case types.OpAddSkill:
			if h, ok := ref.Section.LastContentHandle(); ok {
				touched[h.Digest] = true
			}
		}
	}
	return touched
}

// sectionDiff counts bullet-level changes between the paired sections.
// A before-bullet that was the target of a modify op counts as changed,
// not removed.
func sectionDiff(before, after *types.Section, modified map[string]bool) types.SectionDiff {
	beforeCounts := bulletCounts(before)
	afterCounts := bulletCounts(after)

	var diff types.SectionDiff
	for text, n := range beforeCounts {
		remaining := n - afterCounts[text]
		if remaining <= 0 {
			continue
		}
		// A bullet that survives as a prefix of an after-bullet was
		// extended (skills list additions), not removed.
		if modified[text] || survivesAsPrefix(text, afterCounts) {
			diff.Changed += remaining
		} else {
			diff.Removed += remaining
		}
	}
	for text, n := range afterCounts {
		extra := n - beforeCounts[text]
		if extra > 0 {
			diff.Added += extra
		}
	}
	// Rewritten bullets appear once on each side of the ledger.
	diff.Added -= diff.Changed
	if diff.Added < 0 {
		diff.Added = 0
	}
	return diff
}

func survivesAsPrefix(text string, afterCounts map[string]int) bool {
	for after := range afterCounts {
		if len(after) > len(text) && after[:len(text)] == text {
			return true
		}
	}
	return false
}

func bulletCounts(sec *types.Section) map[string]int {
	counts := make(map[string]int)
	for _, e := range sec.Entries {
		for _, b := range e.Bullets {
			counts[types.NormalizeText(b.Text)]++
		}
	}
	return counts
}

// modifiedBulletTexts collects the pre-edit texts of bullets the plan
// legitimately rewrote.
func modifiedBulletTexts(before *types.DocumentTree, result types.ApplyResult) map[string]bool {
	modified := make(map[string]bool)
	for _, op := range result.Applied {
		if op.Op != types.OpModifyBullet {
			continue
		}
		if ref, ok := before.FindNode(op.TargetAnchor); ok && ref.Bullet != nil {
			modified[types.NormalizeText(ref.Bullet.Text)] = true
		}
	}
	return modified
}

func addedSkills(result types.ApplyResult) []string {
	var skills []string
	for _, op := range result.Applied {
		if op.Op == types.OpAddSkill {
			skills = append(skills, op.PayloadText)
		}
	}
	return skills
}
