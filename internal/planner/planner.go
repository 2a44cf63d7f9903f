// Package planner turns a ranked gap list into a constrained edit plan.
// Every operation is additive or a rewrite; nothing is ever removed.
// Operations that would break a constraint are dropped, not silently
// shrunk, so the plan records exactly what was rejected and why.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"resumeforge/internal/ai"
	"resumeforge/internal/errors"
	"resumeforge/internal/gap"
	"resumeforge/internal/types"
)

// Constraint names recorded on accepted and dropped operations.
const (
	ConstraintSectionGrowth     = "section_growth_limit"
	ConstraintMaxNewBullets     = "max_new_bullets"
	ConstraintMaxBulletsEntry   = "max_bullets_per_entry"
	ConstraintTaggedSectionOnly = "tagged_section_only"
	ConstraintAnchorExists      = "anchor_exists"
	ConstraintNoPhrasing        = "no_deterministic_phrasing"
	ConstraintDuplicateSkill    = "duplicate_skill"
)

// Constraints bound how far a plan may change the document.
type Constraints struct {
	SectionGrowthLimit float64 // max fractional word growth per section
	MaxNewBullets      int     // max inserted bullets across the plan
	MaxBulletsPerEntry int     // max bullets an entry may end up with
}

// Tightened returns the stricter variant used when a verified plan
// failed and the workflow regenerates once.
func (c Constraints) Tightened() Constraints {
	return Constraints{
		SectionGrowthLimit: c.SectionGrowthLimit / 2,
		MaxNewBullets:      c.MaxNewBullets / 2,
		MaxBulletsPerEntry: c.MaxBulletsPerEntry,
	}
}

// Planner generates edit plans. The provider is optional; without one
// (or when a phrasing call fails) deterministic templates are used.
type Planner struct {
	provider ai.Provider
	logger   *errors.Logger
}

// New creates a Planner.
func New(provider ai.Provider, logger *errors.Logger) *Planner {
	return &Planner{provider: provider, logger: logger}
}

// Generate produces a plan for the given gaps, in gap order. An empty
// gap list yields an empty, valid plan.
func (p *Planner) Generate(ctx context.Context, tree *types.DocumentTree, summary types.RequirementSummary, gaps []types.Gap, c Constraints) (types.Plan, error) {
	plan := types.Plan{GeneratedAt: time.Now().UTC()}
	budget := newBudget(tree, c)

	for _, g := range gaps {
		if err := ctx.Err(); err != nil {
			return plan, errors.NewPipelineError(errors.ErrCodeWorkflowCancelled,
				"plan generation cancelled", err)
		}

		op, constraint := p.operationFor(ctx, tree, summary, g)
		if constraint != "" {
			plan.Dropped = append(plan.Dropped, types.DroppedOperation{Operation: op, Constraint: constraint})
			continue
		}
		if violated := budget.admit(tree, &op); violated != "" {
			plan.Dropped = append(plan.Dropped, types.DroppedOperation{Operation: op, Constraint: violated})
			continue
		}
		plan.Operations = append(plan.Operations, op)
	}

	p.logger.Debug("generated plan",
		"operations", len(plan.Operations),
		"dropped", len(plan.Dropped))

	return plan, nil
}

// operationFor maps one gap to its least invasive operation. A non-empty
// constraint return means the operation could not be formed at all.
func (p *Planner) operationFor(ctx context.Context, tree *types.DocumentTree, summary types.RequirementSummary, g types.Gap) (types.EditOperation, string) {
	switch g.Kind {
	case types.GapMissingSkill:
		return p.missingSkillOp(ctx, tree, summary, g)
	case types.GapTerminologyMismatch:
		return p.terminologyOp(ctx, tree, summary, g)
	case types.GapWeakEvidence:
		return p.weakEvidenceOp(ctx, tree, summary, g)
	default:
		return types.EditOperation{GapSubject: g.Subject}, ConstraintAnchorExists
	}
}

func (p *Planner) missingSkillOp(ctx context.Context, tree *types.DocumentTree, summary types.RequirementSummary, g types.Gap) (types.EditOperation, string) {
	ref, ok := tree.FindNode(g.SuggestedTarget)
	if !ok {
		return types.EditOperation{GapSubject: g.Subject}, ConstraintAnchorExists
	}

	// Least invasive first. A skills section takes the skill term as a
	// list addition; no phrasing call, the term itself is the payload.
	if ref.Entry == nil && ref.Section.Tag == types.TagSkills {
		op := types.EditOperation{
			Op:           types.OpAddSkill,
			TargetAnchor: g.SuggestedTarget,
			PayloadText:  g.Subject,
			GapSubject:   g.Subject,
		}
		if skillListed(ref.Section, g.Subject) {
			return op, ConstraintDuplicateSkill
		}
		return op, ""
	}

	// Next preference: weave the skill into the most relevant existing
	// bullet on the target entry instead of growing the entry. Relevance
	// is how many of the other required skills a bullet already
	// mentions; a bullet that mentions none is not a credible home.
	if bullet := mostRelevantBullet(ref.Entry, summary, g.Subject); bullet != nil {
		op := types.EditOperation{
			Op:           types.OpModifyBullet,
			TargetAnchor: bullet.ID,
			PayloadText:  bullet.Text + " using " + g.Subject,
			Rationale:    "surface " + g.Subject + " in related existing work",
			GapSubject:   g.Subject,
		}
		p.phraseWith(ctx, summary, g, types.NodeRef{Section: ref.Section, Entry: ref.Entry, Bullet: bullet}, bullet.Text, &op)
		return op, ""
	}

	op := types.EditOperation{
		Op:           types.OpInsertBullet,
		TargetAnchor: g.SuggestedTarget,
		PayloadText:  fmt.Sprintf("Worked with %s on recent projects", g.Subject),
		GapSubject:   g.Subject,
	}
	p.phrase(ctx, summary, g, ref, &op)
	return op, ""
}

// skillListed reports whether the skill already appears in a skills
// section, consulting the tagger's normalized item list when present
// and falling back to the raw list lines.
func skillListed(sec *types.Section, skill string) bool {
	for _, item := range sec.SkillItems {
		if strings.EqualFold(item, skill) {
			return true
		}
	}
	if len(sec.SkillItems) > 0 {
		return false
	}
	for i := range sec.Entries {
		for _, b := range sec.Entries[i].Bullets {
			if gap.ContainsTerm(b.Text, skill) {
				return true
			}
		}
	}
	return false
}

// mostRelevantBullet picks the entry bullet mentioning the most other
// required skills, earliest on ties. Nil when no bullet mentions any,
// or when the gap target is a whole section.
func mostRelevantBullet(entry *types.Entry, summary types.RequirementSummary, subject string) *types.Bullet {
	if entry == nil {
		return nil
	}

	var others []string
	for _, s := range append(append([]string{}, summary.MustHaveSkills...), summary.NiceToHaveSkills...) {
		if !strings.EqualFold(s, subject) {
			others = append(others, s)
		}
	}

	var best *types.Bullet
	bestScore := 0
	for i := range entry.Bullets {
		b := &entry.Bullets[i]
		score := 0
		for _, other := range others {
			for _, v := range gap.Variants(other) {
				if gap.ContainsTerm(b.Text, v) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = b
		}
	}
	return best
}

func (p *Planner) terminologyOp(ctx context.Context, tree *types.DocumentTree, summary types.RequirementSummary, g types.Gap) (types.EditOperation, string) {
	bullet, ref, ok := findBulletWithVariant(tree, g.Subject)
	if !ok {
		// The synonym appears outside bullet text (a title, the skills
		// line). Fall back to adding the canonical spelling.
		return p.missingSkillOp(ctx, tree, summary, g)
	}

	op := types.EditOperation{
		Op:           types.OpModifyBullet,
		TargetAnchor: bullet.ID,
		PayloadText:  replaceVariant(bullet.Text, g.Subject),
		Rationale:    "align terminology with the job description",
		GapSubject:   g.Subject,
	}
	p.phrase(ctx, summary, g, ref, &op)
	return op, ""
}

func (p *Planner) weakEvidenceOp(ctx context.Context, tree *types.DocumentTree, summary types.RequirementSummary, g types.Gap) (types.EditOperation, string) {
	ref, ok := tree.FindNode(g.SuggestedTarget)
	if !ok || ref.Entry == nil {
		return types.EditOperation{GapSubject: g.Subject}, ConstraintAnchorExists
	}

	var target *types.Bullet
	for i := range ref.Entry.Bullets {
		if !gap.IsQuantified(ref.Entry.Bullets[i].Text) {
			target = &ref.Entry.Bullets[i]
			break
		}
	}
	if target == nil {
		return types.EditOperation{GapSubject: g.Subject}, ConstraintAnchorExists
	}

	op := types.EditOperation{
		Op:           types.OpModifyBullet,
		TargetAnchor: target.ID,
		GapSubject:   g.Subject,
	}
	// Rewriting a bullet to carry quantified impact needs real phrasing.
	// There is no honest deterministic template for it, so without a
	// provider the operation is dropped rather than padded with filler.
	if !p.phraseWith(ctx, summary, g, ref, target.Text, &op) {
		return op, ConstraintNoPhrasing
	}
	return op, ""
}

// phrase asks the provider to improve the deterministic payload, keeping
// the template on any failure.
func (p *Planner) phrase(ctx context.Context, summary types.RequirementSummary, g types.Gap, ref types.NodeRef, op *types.EditOperation) {
	p.phraseWith(ctx, summary, g, ref, "", op)
}

// phraseWith returns true when op carries usable payload text after the
// call, from the provider or from the pre-filled template.
func (p *Planner) phraseWith(ctx context.Context, summary types.RequirementSummary, g types.Gap, ref types.NodeRef, existing string, op *types.EditOperation) bool {
	if p.provider == nil {
		return op.PayloadText != ""
	}

	input := ai.ProposeEditInput{
		Op:             op.Op,
		GapKind:        g.Kind,
		Subject:        g.Subject,
		Seniority:      summary.SeniorityLevel,
		SectionTitle:   ref.Section.Title,
		ExistingBullet: existing,
	}
	if ref.Entry != nil {
		input.EntryTitle = ref.Entry.Title
	}

	out, _, err := p.provider.ProposeEdit(ctx, input)
	if err != nil || strings.TrimSpace(out.Text) == "" {
		if err != nil {
			p.logger.Warn("edit phrasing failed, using template",
				"op", string(op.Op), "subject", g.Subject, "error", err)
		}
		return op.PayloadText != ""
	}

	op.PayloadText = types.NormalizeText(out.Text)
	if out.Rationale != "" {
		op.Rationale = out.Rationale
	}
	return true
}

// findBulletWithVariant locates the first bullet mentioning any known
// alternate spelling of the skill.
func findBulletWithVariant(tree *types.DocumentTree, skill string) (*types.Bullet, types.NodeRef, bool) {
	variants := gap.Variants(skill)
	for si := range tree.Sections {
		sec := &tree.Sections[si]
		for ei := range sec.Entries {
			entry := &sec.Entries[ei]
			for bi := range entry.Bullets {
				b := &entry.Bullets[bi]
				for _, v := range variants {
					if gap.ContainsTerm(b.Text, v) {
						return b, types.NodeRef{Section: sec, Entry: entry, Bullet: b}, true
					}
				}
			}
		}
	}
	return nil, types.NodeRef{}, false
}

// replaceVariant rewrites the first alternate spelling in text to the
// canonical subject, preserving the rest of the bullet verbatim.
func replaceVariant(text, subject string) string {
	for _, v := range gap.Variants(subject) {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(v) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return re.ReplaceAllString(text, subject)
		}
	}
	return text
}

// budget tracks plan-wide and per-section limits while operations are
// admitted one by one.
type budget struct {
	constraints  Constraints
	baseWords    map[string]int // section ID -> pre-edit word count
	addedWords   map[string]int // section ID -> words added so far
	bulletsInUse map[string]int // entry ID -> projected bullet count
	newBullets   int
}

func newBudget(tree *types.DocumentTree, c Constraints) *budget {
	b := &budget{
		constraints:  c,
		baseWords:    make(map[string]int),
		addedWords:   make(map[string]int),
		bulletsInUse: make(map[string]int),
	}
	for i := range tree.Sections {
		sec := &tree.Sections[i]
		b.baseWords[sec.ID] = sec.WordCount()
		for j := range sec.Entries {
			b.bulletsInUse[sec.Entries[j].ID] = len(sec.Entries[j].Bullets)
		}
	}
	return b
}

// admit checks op against every constraint and reserves its budget when
// it passes. Returns the violated constraint name, or "" on success.
func (b *budget) admit(tree *types.DocumentTree, op *types.EditOperation) string {
	ref, ok := tree.FindNode(op.TargetAnchor)
	if !ok {
		return ConstraintAnchorExists
	}
	if ref.Section.Tag == types.TagOther || ref.Section.Tag == "" {
		return ConstraintTaggedSectionOnly
	}

	growth := len(strings.Fields(op.PayloadText))
	if op.Op == types.OpModifyBullet && ref.Bullet != nil {
		growth -= len(strings.Fields(ref.Bullet.Text))
		if growth < 0 {
			growth = 0
		}
	}

	base := b.baseWords[ref.Section.ID]
	if base > 0 {
		projected := float64(b.addedWords[ref.Section.ID]+growth) / float64(base)
		if projected > b.constraints.SectionGrowthLimit {
			return ConstraintSectionGrowth
		}
	}

	if op.Op == types.OpInsertBullet {
		if b.newBullets+1 > b.constraints.MaxNewBullets {
			return ConstraintMaxNewBullets
		}
		entryID := op.TargetAnchor
		if ref.Entry != nil {
			entryID = ref.Entry.ID
		}
		if b.bulletsInUse[entryID]+1 > b.constraints.MaxBulletsPerEntry {
			return ConstraintMaxBulletsEntry
		}
		b.newBullets++
		b.bulletsInUse[entryID]++
	}

	b.addedWords[ref.Section.ID] += growth
	op.ConstraintsApplied = appliedConstraints(op.Op)
	return ""
}

func appliedConstraints(kind types.OpKind) []string {
	base := []string{ConstraintTaggedSectionOnly, ConstraintSectionGrowth}
	if kind == types.OpInsertBullet {
		return append(base, ConstraintMaxNewBullets, ConstraintMaxBulletsEntry)
	}
	return base
}
