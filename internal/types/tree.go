package types

import (
	"fmt"
	"strings"
)

// NodeRef is the result of resolving a node ID inside a tree. Exactly one
// of Section/Entry/Bullet levels is the resolved node; the enclosing
// levels are filled in so callers can walk outward.
type NodeRef struct {
	Section *Section
	Entry   *Entry
	Bullet  *Bullet
}

// FindNode resolves a node ID to its location in the tree. Returns false
// when no node carries the ID.
func (t *DocumentTree) FindNode(id string) (NodeRef, bool) {
	for si := range t.Sections {
		sec := &t.Sections[si]
		if sec.ID == id {
			return NodeRef{Section: sec}, true
		}
		for ei := range sec.Entries {
			entry := &sec.Entries[ei]
			if entry.ID == id {
				return NodeRef{Section: sec, Entry: entry}, true
			}
			for bi := range entry.Bullets {
				bullet := &entry.Bullets[bi]
				if bullet.ID == id {
					return NodeRef{Section: sec, Entry: entry, Bullet: bullet}, true
				}
			}
		}
	}
	return NodeRef{}, false
}

// SectionByTag returns the first section carrying the tag.
func (t *DocumentTree) SectionByTag(tag SemanticTag) (*Section, bool) {
	for i := range t.Sections {
		if t.Sections[i].Tag == tag {
			return &t.Sections[i], true
		}
	}
	return nil, false
}

// WordCount counts whitespace-separated words across the whole tree.
func (t *DocumentTree) WordCount() int {
	total := 0
	for i := range t.Sections {
		total += t.Sections[i].WordCount()
	}
	return total
}

// WordCount counts words in the section including titles and bullets.
func (s *Section) WordCount() int {
	total := len(strings.Fields(s.Title))
	for _, e := range s.Entries {
		total += len(strings.Fields(e.Title))
		total += len(strings.Fields(e.Subtitle))
		for _, b := range e.Bullets {
			total += len(strings.Fields(b.Text))
		}
	}
	return total
}

// LastContentHandle returns the handle of the section's last content
// paragraph: the final bullet, else the final titled entry, else the
// heading itself. This is where list additions land.
func (s *Section) LastContentHandle() (FormattingHandle, bool) {
	for ei := len(s.Entries) - 1; ei >= 0; ei-- {
		entry := &s.Entries[ei]
		if n := len(entry.Bullets); n > 0 {
			return entry.Bullets[n-1].Handle, true
		}
		if entry.Title != "" || entry.Subtitle != "" {
			return entry.Handle, true
		}
	}
	if s.Title != "" {
		return s.Handle, true
	}
	return FormattingHandle{}, false
}

// BulletTexts returns every bullet text in document order, whitespace
// normalized. Used for content-preservation checks.
func (t *DocumentTree) BulletTexts() []string {
	var out []string
	for _, s := range t.Sections {
		for _, e := range s.Entries {
			for _, b := range e.Bullets {
				out = append(out, NormalizeText(b.Text))
			}
		}
	}
	return out
}

// ContainsText reports whether needle occurs anywhere in the tree,
// case-insensitive.
func (t *DocumentTree) ContainsText(needle string) bool {
	needle = strings.ToLower(needle)
	for _, s := range t.Sections {
		if strings.Contains(strings.ToLower(s.Title), needle) {
			return true
		}
		for _, e := range s.Entries {
			if strings.Contains(strings.ToLower(e.Title), needle) ||
				strings.Contains(strings.ToLower(e.Subtitle), needle) {
				return true
			}
			for _, b := range e.Bullets {
				if strings.Contains(strings.ToLower(b.Text), needle) {
					return true
				}
			}
		}
	}
	return false
}

// Validate checks referential integrity: unique node IDs and contiguous
// zero-based order indexes within each parent.
func (t *DocumentTree) Validate() error {
	seen := make(map[string]bool)
	check := func(id, kind string) error {
		if id == "" {
			return fmt.Errorf("%s node has empty ID", kind)
		}
		if seen[id] {
			return fmt.Errorf("duplicate node ID %q", id)
		}
		seen[id] = true
		return nil
	}
	for si, s := range t.Sections {
		if err := check(s.ID, "section"); err != nil {
			return err
		}
		if s.OrderIndex != si {
			return fmt.Errorf("section %q order index %d, want %d", s.ID, s.OrderIndex, si)
		}
		for ei, e := range s.Entries {
			if err := check(e.ID, "entry"); err != nil {
				return err
			}
			if e.OrderIndex != ei {
				return fmt.Errorf("entry %q order index %d, want %d", e.ID, e.OrderIndex, ei)
			}
			for bi, b := range e.Bullets {
				if err := check(b.ID, "bullet"); err != nil {
					return err
				}
				if b.OrderIndex != bi {
					return fmt.Errorf("bullet %q order index %d, want %d", b.ID, b.OrderIndex, bi)
				}
			}
		}
	}
	return nil
}

// NormalizeText collapses whitespace runs and trims, for text comparisons
// that should ignore exact spacing.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
