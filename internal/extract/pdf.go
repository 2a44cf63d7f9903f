package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"resumeforge/internal/types"
)

// extractPDF pulls plain text out of a PDF and reconstructs paragraph
// lines. PDF gives no style information, so headings and bullets are
// inferred from the text itself; formatting handles are line ordinals.
func extractPDF(data []byte) ([]types.Paragraph, error) {
	reader := bytes.NewReader(data)
	r, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	rs, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return linesToParagraphs(buf.String()), nil
}

// linesToParagraphs turns newline-separated text into paragraphs,
// collapsing whitespace and skipping blank lines.
func linesToParagraphs(text string) []types.Paragraph {
	var paragraphs []types.Paragraph
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(line, "\u00a0", " ")
		trimmed := types.NormalizeText(line)
		if trimmed == "" {
			continue
		}
		paragraphs = append(paragraphs, types.Paragraph{
			Index:     len(paragraphs),
			Text:      trimmed,
			IsBullet:  looksLikeBullet(trimmed),
			IsHeading: looksLikeHeading(trimmed),
			Digest:    paragraphDigest(trimmed),
		})
	}
	return paragraphs
}

// looksLikeHeading flags short lines without terminal punctuation that
// are upper-cased or title-cased, the usual shape of a resume section
// header in flat text.
func looksLikeHeading(text string) bool {
	if looksLikeBullet(text) {
		return false
	}
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 5 {
		return false
	}
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, ",") || strings.HasSuffix(text, ";") {
		return false
	}
	letters := 0
	uppers := 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			uppers++
		}
	}
	if letters == 0 {
		return false
	}
	// All caps, or every word starts with a capital.
	if uppers == letters {
		return true
	}
	for _, w := range words {
		r := rune(w[0])
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}
