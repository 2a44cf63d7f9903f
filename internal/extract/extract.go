// Package extract reads uploaded document bytes and yields both raw
// text and a paragraph-level structural model the rest of the pipeline
// works from.
//
// Supported formats:
//   - .docx — archive/zip → word/document.xml
//   - .pdf  — text extraction via github.com/ledongthuc/pdf
//   - .txt, .md, .text, .markdown — plain text
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// Extractor dispatches extraction by document format.
type Extractor struct {
	logger *errors.Logger
}

// New creates an Extractor.
func New(logger *errors.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// DetectFormat returns the document format for a filename.
func DetectFormat(filename string) (types.DocFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return types.FormatDocx, nil
	case ".pdf":
		return types.FormatPDF, nil
	case ".txt", ".text", ".md", ".markdown":
		return types.FormatText, nil
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedDocFormat,
			"unsupported document format: "+filepath.Ext(filename), nil)
	}
}

// Extract parses document bytes into a structural model. Empty or
// non-text-extractable input is a structure error; everything the
// structurer needs downstream is derived from this model.
func (e *Extractor) Extract(data []byte, format types.DocFormat) (*types.StructuralModel, error) {
	if len(data) == 0 {
		return nil, errors.NewPipelineError(errors.ErrCodeStructureInvalid,
			"document is empty", nil)
	}

	var (
		paragraphs []types.Paragraph
		err        error
	)
	switch format {
	case types.FormatDocx:
		paragraphs, err = extractDocx(data)
	case types.FormatPDF:
		paragraphs, err = extractPDF(data)
	case types.FormatText:
		paragraphs, err = extractText(data)
	default:
		return nil, errors.NewValidationError(errors.ErrCodeUnsupportedDocFormat,
			"no extractor for format: "+string(format), nil)
	}
	if err != nil {
		return nil, errors.NewPipelineError(errors.ErrCodeStructureInvalid,
			"document is not text-extractable", err)
	}

	if len(paragraphs) == 0 {
		return nil, errors.NewPipelineError(errors.ErrCodeStructureInvalid,
			"no text content found in document", nil)
	}

	var sb strings.Builder
	for i, p := range paragraphs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Text)
	}

	e.logger.Debug("extracted structural model",
		"format", string(format),
		"paragraphs", len(paragraphs),
		"chars", sb.Len())

	return &types.StructuralModel{
		Format:     format,
		RawText:    sb.String(),
		Paragraphs: paragraphs,
	}, nil
}

// paragraphDigest is the pre-image hash anchors are frozen against:
// SHA-256 over the whitespace-normalized paragraph text. The editor and
// verifier recompute it with the same definition to detect drift.
func paragraphDigest(text string) string {
	sum := sha256.Sum256([]byte(types.NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// bulletMarkers are the leading characters that mark a list item in
// plain-text renditions.
var bulletMarkers = []string{"•", "◦", "▪", "‣", "–", "-", "*", "·"}

// looksLikeBullet reports whether a text line carries a list marker.
func looksLikeBullet(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, m := range bulletMarkers {
		if strings.HasPrefix(trimmed, m+" ") || trimmed == m {
			return true
		}
	}
	return false
}

// stripBulletMarker removes a leading list marker from a text line.
func stripBulletMarker(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, m := range bulletMarkers {
		if strings.HasPrefix(trimmed, m+" ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, m+" "))
		}
	}
	return trimmed
}
