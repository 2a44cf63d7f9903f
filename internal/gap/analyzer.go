// Package gap compares a tagged document tree against a requirement
// summary and produces a ranked, deterministically ordered list of
// gaps: missing skills, weak evidence, and terminology mismatches.
package gap

import (
	"sort"
	"strings"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// Analyzer detects mismatches between resume content and requirements.
type Analyzer struct {
	quantifiedRatio map[string]float64
	logger          *errors.Logger
}

// New creates an Analyzer. quantifiedRatio maps seniority levels to the
// minimum fraction of quantified bullets an experience entry should
// carry before it counts as weak evidence.
func New(quantifiedRatio map[string]float64, logger *errors.Logger) *Analyzer {
	return &Analyzer{quantifiedRatio: quantifiedRatio, logger: logger}
}

// skillSynonyms maps canonical skill spellings to the variants resumes
// actually use. Matching consults both directions.
var skillSynonyms = map[string][]string{
	"kubernetes":             {"k8s"},
	"go":                     {"golang"},
	"javascript":             {"js", "ecmascript"},
	"typescript":             {"ts"},
	"python":                 {"py"},
	"postgresql":             {"postgres"},
	"amazon web services":    {"aws"},
	"google cloud":           {"gcp", "google cloud platform"},
	"machine learning":       {"ml"},
	"continuous integration": {"ci", "ci/cd"},
	"infrastructure as code": {"iac", "terraform"},
	"docker":                 {"containers", "containerization"},
}

// quantifierWords are the scope words that count a bullet as
// quantified evidence even without digits.
var quantifierWords = []string{
	"million", "billion", "thousand", "percent", "team", "users",
	"customers", "revenue", "latency", "throughput", "uptime", "scale",
}

// Analyze produces the ordered gap list. Given identical inputs the
// ordering is stable: severity descending, then the target node's
// document position, then subject alphabetically.
func (a *Analyzer) Analyze(tree *types.DocumentTree, summary types.RequirementSummary) []types.Gap {
	fullText := flatten(tree)
	var gaps []types.Gap

	for _, skill := range summary.MustHaveSkills {
		gaps = a.appendSkillGap(gaps, tree, fullText, skill, summary, true)
	}
	for _, skill := range summary.NiceToHaveSkills {
		gaps = a.appendSkillGap(gaps, tree, fullText, skill, summary, false)
	}
	gaps = append(gaps, a.weakEvidenceGaps(tree, summary)...)

	order := positionIndex(tree)
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Severity != gaps[j].Severity {
			return gaps[i].Severity > gaps[j].Severity
		}
		pi, pj := order[gaps[i].SuggestedTarget], order[gaps[j].SuggestedTarget]
		if pi != pj {
			return pi < pj
		}
		return gaps[i].Subject < gaps[j].Subject
	})

	a.logger.Debug("analyzed gaps",
		"gaps", len(gaps),
		"must_have", len(summary.MustHaveSkills),
		"nice_to_have", len(summary.NiceToHaveSkills))

	return gaps
}

func (a *Analyzer) appendSkillGap(gaps []types.Gap, tree *types.DocumentTree, fullText, skill string, summary types.RequirementSummary, mustHave bool) []types.Gap {
	literal := ContainsTerm(fullText, skill)
	synonym := containsAnySynonym(fullText, skill)

	if literal {
		return gaps // already satisfied; no gap, no operation
	}

	// Default only when the summary carries no weight at all; an
	// explicit zero is a real signal and stays zero.
	weight, ok := summary.KeywordWeights[skill]
	if !ok {
		weight = 0.5
	}

	if synonym {
		// Present under another spelling: a terminology mismatch, not a
		// missing skill.
		return append(gaps, types.Gap{
			Kind:            types.GapTerminologyMismatch,
			Subject:         skill,
			Severity:        0.25 + 0.15*weight,
			SuggestedTarget: a.skillTarget(tree, skill),
			Detail:          "mentioned under a different spelling than the job description uses",
		})
	}

	severity := 0.3 + 0.2*weight
	if mustHave {
		severity = 0.7 + 0.3*weight
	}
	if severity > 1 {
		severity = 1
	}

	return append(gaps, types.Gap{
		Kind:            types.GapMissingSkill,
		Subject:         skill,
		Severity:        severity,
		SuggestedTarget: a.skillTarget(tree, skill),
	})
}

// skillTarget picks where evidence for a skill could be added: the
// skills section when one exists, else the first experience entry.
func (a *Analyzer) skillTarget(tree *types.DocumentTree, skill string) string {
	if sec, ok := tree.SectionByTag(types.TagSkills); ok {
		return sec.ID
	}
	if sec, ok := tree.SectionByTag(types.TagExperience); ok {
		if len(sec.Entries) > 0 {
			return sec.Entries[0].ID
		}
		return sec.ID
	}
	return ""
}

// weakEvidenceGaps flags experience entries whose bullets carry too
// little quantifiable language for the target seniority.
func (a *Analyzer) weakEvidenceGaps(tree *types.DocumentTree, summary types.RequirementSummary) []types.Gap {
	threshold := a.quantifiedRatio[string(summary.SeniorityLevel)]
	if threshold <= 0 {
		return nil
	}

	var gaps []types.Gap
	for si := range tree.Sections {
		sec := &tree.Sections[si]
		if sec.Tag != types.TagExperience {
			continue
		}
		for ei := range sec.Entries {
			entry := &sec.Entries[ei]
			if len(entry.Bullets) == 0 {
				continue
			}
			quantified := 0
			for _, b := range entry.Bullets {
				if IsQuantified(b.Text) {
					quantified++
				}
			}
			ratio := float64(quantified) / float64(len(entry.Bullets))
			if ratio >= threshold {
				continue
			}
			deficit := threshold - ratio
			subject := entry.Title
			if subject == "" {
				subject = sec.Title
			}
			gaps = append(gaps, types.Gap{
				Kind:            types.GapWeakEvidence,
				Subject:         subject,
				Severity:        0.35 + 0.5*deficit,
				SuggestedTarget: entry.ID,
				Detail:          "bullets lack quantified outcomes for the target seniority",
			})
		}
	}
	return gaps
}

// IsQuantified reports whether a bullet contains numbers, percentages,
// or scope words.
func IsQuantified(text string) bool {
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
		if r == '%' {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, w := range quantifierWords {
		if ContainsTerm(lower, w) {
			return true
		}
	}
	return false
}

// flatten concatenates all tree text, lowercased, for containment
// checks.
func flatten(tree *types.DocumentTree) string {
	var sb strings.Builder
	for _, s := range tree.Sections {
		sb.WriteString(s.Title)
		sb.WriteByte('\n')
		for _, e := range s.Entries {
			sb.WriteString(e.Title)
			sb.WriteByte('\n')
			sb.WriteString(e.Subtitle)
			sb.WriteByte('\n')
			for _, b := range e.Bullets {
				sb.WriteString(b.Text)
				sb.WriteByte('\n')
			}
		}
	}
	return strings.ToLower(sb.String())
}

// ContainsTerm reports whether term occurs in text on token boundaries,
// case-insensitive. Plain substring search would let "Go" match
// "Google".
func ContainsTerm(text, term string) bool {
	text = strings.ToLower(text)
	term = strings.ToLower(types.NormalizeText(term))
	if term == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		before := idx - 1
		after := idx + len(term)
		beforeOK := before < 0 || !isWordChar(text[before])
		afterOK := after >= len(text) || !isWordChar(text[after])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// Variants returns the known alternate spellings for a skill, in both
// directions of the synonym table. The skill itself is not included.
func Variants(skill string) []string {
	key := strings.ToLower(types.NormalizeText(skill))
	variants := append([]string(nil), skillSynonyms[key]...)
	for canonical, vs := range skillSynonyms {
		for _, v := range vs {
			if v == key {
				variants = append(variants, canonical)
			}
		}
	}
	sort.Strings(variants)
	return variants
}

// containsAnySynonym checks the synonym table in both directions.
func containsAnySynonym(text, skill string) bool {
	key := strings.ToLower(types.NormalizeText(skill))
	for _, variant := range skillSynonyms[key] {
		if ContainsTerm(text, variant) {
			return true
		}
	}
	for canonical, variants := range skillSynonyms {
		for _, variant := range variants {
			if variant == key {
				if ContainsTerm(text, canonical) {
					return true
				}
			}
		}
	}
	return false
}

// positionIndex maps node IDs to their position in document order, for
// deterministic tie-breaking.
func positionIndex(tree *types.DocumentTree) map[string]int {
	order := make(map[string]int)
	pos := 0
	for _, s := range tree.Sections {
		order[s.ID] = pos
		pos++
		for _, e := range s.Entries {
			order[e.ID] = pos
			pos++
			for _, b := range e.Bullets {
				order[b.ID] = pos
				pos++
			}
		}
	}
	return order
}
