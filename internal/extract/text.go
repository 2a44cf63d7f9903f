package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"resumeforge/internal/types"
)

// extractText handles plain-text and markdown resumes. Markdown heading
// markers are honored; otherwise the same line heuristics as the PDF
// path apply.
func extractText(data []byte) ([]types.Paragraph, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("input is not valid UTF-8 text")
	}

	var paragraphs []types.Paragraph
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := types.NormalizeText(line)
		if trimmed == "" {
			continue
		}

		heading := false
		if rest, ok := strings.CutPrefix(trimmed, "#"); ok {
			heading = true
			trimmed = types.NormalizeText(strings.TrimLeft(rest, "#"))
			if trimmed == "" {
				continue
			}
		} else {
			heading = looksLikeHeading(trimmed)
		}

		paragraphs = append(paragraphs, types.Paragraph{
			Index:     len(paragraphs),
			Text:      trimmed,
			IsBullet:  looksLikeBullet(trimmed),
			IsHeading: heading,
			Digest:    paragraphDigest(trimmed),
		})
	}
	return paragraphs, nil
}
