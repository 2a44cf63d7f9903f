// Package tagger annotates document-tree sections with semantic tags so
// downstream stages know where edits are allowed. Unmatched sections
// get the tag "other" and are excluded from edit targets.
package tagger

import (
	"strings"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// Tagger maps section titles onto a closed tag vocabulary.
type Tagger struct {
	threshold float64
	logger    *errors.Logger
}

// New creates a Tagger. threshold is the minimum title similarity for a
// match, in (0,1].
func New(threshold float64, logger *errors.Logger) *Tagger {
	return &Tagger{threshold: threshold, logger: logger}
}

// tagOrder fixes the order tags are scored in. Ties go to the earliest
// tag, so classification never depends on map iteration order; the edit
// targets (experience, skills) rank ahead of summary for titles like
// "Skills Summary" that match both equally.
var tagOrder = []types.SemanticTag{
	types.TagExperience,
	types.TagSkills,
	types.TagSummary,
	types.TagEducation,
	types.TagProjects,
	types.TagCertifications,
}

// tagSynonyms holds the known spellings per tag. Matching is token
// based, so multi-word synonyms cover the common compound titles.
var tagSynonyms = map[types.SemanticTag][]string{
	types.TagSummary: {
		"summary", "profile", "objective", "about", "about me",
		"professional summary", "career objective",
	},
	types.TagExperience: {
		"experience", "work experience", "professional experience",
		"employment", "employment history", "work history", "career history",
	},
	types.TagSkills: {
		"skills", "technical skills", "core competencies", "competencies",
		"technologies", "tech stack", "tools",
	},
	types.TagEducation: {
		"education", "academic background", "academics", "degrees",
	},
	types.TagProjects: {
		"projects", "personal projects", "selected projects", "portfolio",
	},
	types.TagCertifications: {
		"certifications", "certificates", "licenses",
		"licenses and certifications",
	},
}

// Tag populates semantic_tag on every section and returns the tree.
// Skills sections additionally get their normalized item list.
func (t *Tagger) Tag(tree *types.DocumentTree) *types.DocumentTree {
	for i := range tree.Sections {
		sec := &tree.Sections[i]
		sec.Tag = t.classify(sec.Title)
		if sec.Tag == types.TagSkills {
			sec.SkillItems = skillItems(sec)
		}
	}

	t.logger.Debug("tagged sections", "sections", len(tree.Sections))
	return tree
}

// skillItems splits the section's list lines into individual skills and
// dedupes them case-insensitively, keeping the first spelling seen. The
// document text itself is never rewritten; the list is a derived view
// for duplicate checks downstream.
func skillItems(sec *types.Section) []string {
	seen := make(map[string]bool)
	var items []string
	add := func(line string) {
		for _, item := range splitSkillList(line) {
			key := strings.ToLower(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
		}
	}
	for i := range sec.Entries {
		entry := &sec.Entries[i]
		if entry.Title != "" {
			add(entry.Title)
		}
		for j := range entry.Bullets {
			add(entry.Bullets[j].Text)
		}
	}
	return items
}

// splitSkillList breaks a skills line on the common list separators.
// Slashes stay intact so compounds like "CI/CD" survive as one item.
func splitSkillList(line string) []string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '•' || r == '·'
	})
	var items []string
	for _, f := range fields {
		if item := types.NormalizeText(f); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// classify returns the best-scoring tag for a title, or TagOther below
// the threshold.
func (t *Tagger) classify(title string) types.SemanticTag {
	titleTokens := tokenize(title)
	if len(titleTokens) == 0 {
		return types.TagOther
	}

	best := types.TagOther
	bestScore := 0.0
	for _, tag := range tagOrder {
		for _, syn := range tagSynonyms[tag] {
			score := similarity(titleTokens, tokenize(syn))
			if score > bestScore {
				bestScore = score
				best = tag
			}
		}
	}

	if bestScore < t.threshold {
		return types.TagOther
	}
	return best
}

var stopwords = map[string]bool{
	"and": true, "of": true, "the": true, "my": true, "amp": true,
}

func tokenize(s string) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, field)
		if token == "" || stopwords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// similarity is the token containment coefficient: shared tokens over
// the smaller token set. Containment rather than Jaccard so a compound
// title ("Experience & Leadership") still matches its core synonym.
func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	shared := 0
	for _, tok := range b {
		if set[tok] {
			shared++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(shared) / float64(smaller)
}
