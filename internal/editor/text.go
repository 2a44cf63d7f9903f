package editor

import (
	"strings"
)

// textBackend edits plain-text and markdown documents line by line.
// Paragraph ordinals count non-empty lines, matching the extractor, so
// blank lines and spacing survive untouched.
type textBackend struct {
	lines  []string
	lineOf []int // paragraph ordinal -> line number
}

func newTextBackend(data []byte) *textBackend {
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	b := &textBackend{lines: lines}
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			b.lineOf = append(b.lineOf, i)
		}
	}
	return b
}

func (b *textBackend) apply(muts []mutation) ([]byte, []string, error) {
	replaced := make(map[int]string) // line number -> new content
	appended := make(map[int]string) // line number -> suffix
	inserts := make(map[int][]string)

	for _, m := range muts {
		line := b.lineOf[m.index]
		switch m.kind {
		case mutReplace:
			prefix, _ := splitBulletPrefix(b.lines[line])
			replaced[line] = prefix + m.text
		case mutInsertAfter:
			marker := "- "
			if m.cloneFrom >= 0 {
				prefix, _ := splitBulletPrefix(b.lines[b.lineOf[m.cloneFrom]])
				if prefix != "" {
					marker = prefix
				}
			}
			inserts[line] = append(inserts[line], marker+m.text)
		case mutAppend:
			appended[line] += ", " + m.text
		}
	}

	var out strings.Builder
	for i, line := range b.lines {
		if repl, ok := replaced[i]; ok {
			line = repl
		}
		line += appended[i]
		out.WriteString(line)
		out.WriteByte('\n')
		for _, ins := range inserts[i] {
			out.WriteString(ins)
			out.WriteByte('\n')
		}
	}

	// Plain text has no formatting runs, so nothing gets flagged.
	return []byte(out.String()), nil, nil
}

// splitBulletPrefix separates a line's indentation and list marker from
// its content, so a rewrite keeps the original marker.
func splitBulletPrefix(line string) (prefix, content string) {
	trimmed := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(trimmed)]
	for _, m := range []string{"•", "◦", "▪", "‣", "–", "-", "*", "·"} {
		if rest, ok := strings.CutPrefix(trimmed, m+" "); ok {
			return indent + m + " ", rest
		}
	}
	return indent, trimmed
}
