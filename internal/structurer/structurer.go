// Package structurer turns the extracted structural model into the
// typed document tree: Sections → Entries → Bullets, each node keeping
// the formatting handle of the paragraph it came from.
package structurer

import (
	"fmt"
	"regexp"
	"strings"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// Structurer classifies paragraphs into the document tree.
type Structurer struct {
	logger *errors.Logger
}

// New creates a Structurer.
func New(logger *errors.Logger) *Structurer {
	return &Structurer{logger: logger}
}

// sectionTitleVocabulary lists words that promote a short paragraph to a
// section heading even without heading styling. Layout alone is not
// reliable for flat-text renditions of resumes.
var sectionTitleVocabulary = []string{
	"experience", "employment", "work history", "career",
	"education", "skills", "summary", "profile", "objective",
	"projects", "certifications", "certificates", "publications",
	"awards", "languages", "interests", "contact",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Build constructs a DocumentTree from the structural model. A resume
// with no detectable headings lands in a single synthetic "Body"
// section instead of failing.
func (s *Structurer) Build(model *types.StructuralModel) (*types.DocumentTree, error) {
	if model == nil || len(model.Paragraphs) == 0 {
		return nil, errors.NewPipelineError(errors.ErrCodeStructureInvalid,
			"structural model is empty", nil)
	}

	tree := &types.DocumentTree{Format: model.Format}

	var current *sectionBuilder
	var builders []*sectionBuilder

	openSection := func(title string, handle types.FormattingHandle) {
		current = &sectionBuilder{title: title, handle: handle}
		builders = append(builders, current)
	}

	for _, p := range model.Paragraphs {
		handle := types.FormattingHandle{Paragraph: p.Index, Style: p.Style, Digest: p.Digest}

		switch {
		case isSectionHeading(p):
			openSection(p.Text, handle)

		case p.IsBullet:
			if current == nil {
				// Bulleted content before any heading: header material.
				openSection("Profile", handle)
			}
			current.addBullet(stripMarker(p.Text), handle)

		default:
			if current == nil {
				openSection("Profile", handle)
				current.addEntry(p.Text, handle)
				continue
			}
			// A meta line (dates, company) directly under a fresh entry
			// becomes its subtitle; anything else starts a new entry.
			if entry := current.lastEntry(); entry != nil && len(entry.bullets) == 0 &&
				entry.subtitle == "" && looksLikeMetaLine(p.Text) {
				entry.subtitle = p.Text
				continue
			}
			current.addEntry(p.Text, handle)
		}
	}

	// No headings anywhere: collapse into one synthetic Body section.
	if len(builders) == 1 && builders[0].title == "Profile" {
		builders[0].title = "Body"
	}

	for si, b := range builders {
		tree.Sections = append(tree.Sections, b.build(si))
	}

	if err := tree.Validate(); err != nil {
		return nil, errors.NewPipelineError(errors.ErrCodeStructureInvalid,
			"built tree failed validation", err)
	}

	s.logger.Debug("structured document",
		"sections", len(tree.Sections),
		"words", tree.WordCount())

	return tree, nil
}

// isSectionHeading decides what opens a section. Styled headings (docx)
// win outright. Flat text has no styles, so a line must either match
// the title vocabulary or be a short all-caps line; plain title-case is
// not enough, or every role title would start its own section.
func isSectionHeading(p types.Paragraph) bool {
	if p.IsBullet {
		return false
	}
	words := len(strings.Fields(p.Text))
	if p.Style != "" && p.IsHeading && words <= 6 {
		return true
	}
	if words <= 4 {
		lower := strings.ToLower(types.NormalizeText(p.Text))
		for _, word := range sectionTitleVocabulary {
			if strings.Contains(lower, word) {
				return true
			}
		}
		if p.IsHeading && isAllCaps(p.Text) {
			return true
		}
	}
	return false
}

func isAllCaps(text string) bool {
	hasLetter := false
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// looksLikeMetaLine detects company/date lines: a year, a date range
// dash, or a short comma-separated location line.
func looksLikeMetaLine(text string) bool {
	if yearPattern.MatchString(text) {
		return true
	}
	if strings.Contains(text, "–") || strings.Contains(text, " - ") {
		return true
	}
	return strings.Count(text, ",") >= 1 && len(strings.Fields(text)) <= 6
}

func stripMarker(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, m := range []string{"•", "◦", "▪", "‣", "–", "-", "*", "·"} {
		if rest, ok := strings.CutPrefix(trimmed, m+" "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}

// sectionBuilder accumulates entries while paragraphs stream through.
type sectionBuilder struct {
	title   string
	handle  types.FormattingHandle
	entries []*entryBuilder
}

type entryBuilder struct {
	title    string
	subtitle string
	handle   types.FormattingHandle
	bullets  []types.Bullet
}

func (b *sectionBuilder) lastEntry() *entryBuilder {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[len(b.entries)-1]
}

func (b *sectionBuilder) addEntry(title string, handle types.FormattingHandle) {
	b.entries = append(b.entries, &entryBuilder{title: title, handle: handle})
}

func (b *sectionBuilder) addBullet(text string, handle types.FormattingHandle) {
	if len(b.entries) == 0 {
		// Bullets with no introducing paragraph get a synthetic entry.
		b.entries = append(b.entries, &entryBuilder{handle: b.handle})
	}
	entry := b.lastEntry()
	entry.bullets = append(entry.bullets, types.Bullet{
		Text:   text,
		Handle: handle,
	})
}

// build assigns deterministic node IDs and contiguous order indexes.
// IDs depend only on position, so re-parsing an unchanged document
// yields identical anchors.
func (b *sectionBuilder) build(si int) types.Section {
	section := types.Section{
		ID:         fmt.Sprintf("s%d", si),
		Title:      b.title,
		Handle:     b.handle,
		OrderIndex: si,
	}
	for ei, eb := range b.entries {
		entry := types.Entry{
			ID:         fmt.Sprintf("s%de%d", si, ei),
			Title:      eb.title,
			Subtitle:   eb.subtitle,
			Handle:     eb.handle,
			OrderIndex: ei,
		}
		for bi, bullet := range eb.bullets {
			bullet.ID = fmt.Sprintf("s%de%db%d", si, ei, bi)
			bullet.OrderIndex = bi
			entry.Bullets = append(entry.Bullets, bullet)
		}
		section.Entries = append(section.Entries, entry)
	}
	return section
}
