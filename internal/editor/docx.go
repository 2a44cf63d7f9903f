package editor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"resumeforge/internal/extract"
)

// docxBackend splices paragraph XML inside the original archive bytes.
// Everything outside the touched <w:p> elements is carried over
// byte-for-byte, and inserted bullets clone a sibling's paragraph XML
// so numbering and run properties survive.
type docxBackend struct {
	original []byte
	docXML   []byte
	paras    []paraSpan
}

// paraSpan is the byte range of one text-bearing <w:p> element inside
// document.xml. Ordinals over these spans match the extractor's
// paragraph indexing, which skips empty paragraphs.
type paraSpan struct {
	start, end int
}

func newDocxBackend(data []byte) (*docxBackend, error) {
	docXML, err := extract.ReadDocumentXML(data)
	if err != nil {
		return nil, err
	}
	return &docxBackend{
		original: data,
		docXML:   docXML,
		paras:    paragraphSpans(docXML),
	}, nil
}

func (b *docxBackend) apply(muts []mutation) ([]byte, []string, error) {
	byIndex := make(map[int][]mutation)
	for _, m := range muts {
		byIndex[m.index] = append(byIndex[m.index], m)
	}

	var out bytes.Buffer
	var flagged []string
	cursor := 0

	for i, span := range b.paras {
		group := byIndex[i]
		if len(group) == 0 {
			continue
		}

		out.Write(b.docXML[cursor:span.start])
		pXML := b.docXML[span.start:span.end]

		var inserts [][]byte
		for _, m := range group {
			switch m.kind {
			case mutReplace:
				var multiRun bool
				pXML, multiRun = setParagraphText(pXML, m.text)
				if multiRun {
					flagged = append(flagged, m.anchor)
				}
			case mutAppend:
				pXML = appendToLastText(pXML, ", "+m.text)
			case mutInsertAfter:
				inserts = append(inserts, b.renderBullet(m))
			}
		}

		out.Write(pXML)
		for _, ins := range inserts {
			out.Write(ins)
		}
		cursor = span.end
	}
	out.Write(b.docXML[cursor:])

	rebuilt, err := rebuildDocx(b.original, out.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return rebuilt, flagged, nil
}

// renderBullet produces the XML for an inserted bullet: a clone of the
// sibling paragraph when one exists, otherwise a minimal run.
func (b *docxBackend) renderBullet(m mutation) []byte {
	if m.cloneFrom >= 0 && m.cloneFrom < len(b.paras) {
		src := b.paras[m.cloneFrom]
		clone := append([]byte(nil), b.docXML[src.start:src.end]...)
		clone, _ = setParagraphText(clone, m.text)
		return clone
	}
	return []byte("<w:p><w:r><w:t>" + escapeXML(m.text) + "</w:t></w:r></w:p>")
}

// paragraphSpans scans document.xml for <w:p> elements that carry text.
// OOXML paragraphs do not nest, so the next </w:p> closes the current
// element.
func paragraphSpans(docXML []byte) []paraSpan {
	var spans []paraSpan
	pos := 0
	for {
		start := indexElement(docXML, pos, "w:p")
		if start < 0 {
			return spans
		}
		tagEnd := bytes.IndexByte(docXML[start:], '>')
		if tagEnd < 0 {
			return spans
		}
		tagEnd += start + 1

		var end int
		if docXML[tagEnd-2] == '/' { // <w:p/> or <w:p .../>
			end = tagEnd
		} else {
			closeIdx := bytes.Index(docXML[tagEnd:], []byte("</w:p>"))
			if closeIdx < 0 {
				return spans
			}
			end = tagEnd + closeIdx + len("</w:p>")
		}

		if strings.TrimSpace(paragraphText(docXML[start:end])) != "" {
			spans = append(spans, paraSpan{start: start, end: end})
		}
		pos = end
	}
}

// indexElement finds the next start tag of the named element at or
// after pos, rejecting longer names that share the prefix (w:p vs
// w:pPr).
func indexElement(data []byte, pos int, name string) int {
	needle := []byte("<" + name)
	for {
		idx := bytes.Index(data[pos:], needle)
		if idx < 0 {
			return -1
		}
		idx += pos
		after := idx + len(needle)
		if after < len(data) {
			switch data[after] {
			case '>', ' ', '/', '\t', '\r', '\n':
				return idx
			}
		}
		pos = idx + 1
	}
}

// wtSpan locates one <w:t> element's open tag and content inside a
// paragraph.
type wtSpan struct {
	tagStart     int // '<' of the open tag
	contentStart int // first byte after '>'
	contentEnd   int // '<' of </w:t>, == contentStart when self-closing
	selfClosing  bool
}

func findTextRuns(pXML []byte) []wtSpan {
	var runs []wtSpan
	pos := 0
	for {
		start := indexElement(pXML, pos, "w:t")
		if start < 0 {
			return runs
		}
		tagEnd := bytes.IndexByte(pXML[start:], '>')
		if tagEnd < 0 {
			return runs
		}
		tagEnd += start + 1

		if pXML[tagEnd-2] == '/' {
			runs = append(runs, wtSpan{tagStart: start, contentStart: tagEnd, contentEnd: tagEnd, selfClosing: true})
			pos = tagEnd
			continue
		}
		closeIdx := bytes.Index(pXML[tagEnd:], []byte("</w:t>"))
		if closeIdx < 0 {
			return runs
		}
		runs = append(runs, wtSpan{tagStart: start, contentStart: tagEnd, contentEnd: tagEnd + closeIdx})
		pos = tagEnd + closeIdx + len("</w:t>")
	}
}

func paragraphText(pXML []byte) string {
	var sb strings.Builder
	for _, run := range findTextRuns(pXML) {
		sb.Write(pXML[run.contentStart:run.contentEnd])
	}
	return sb.String()
}

// setParagraphText rewrites a paragraph to carry exactly the given
// text: the first text run receives it, every other run is emptied.
// Reports whether the paragraph had multiple non-empty runs, meaning
// intra-paragraph formatting was collapsed.
func setParagraphText(pXML []byte, text string) ([]byte, bool) {
	runs := findTextRuns(pXML)
	if len(runs) == 0 {
		closeIdx := bytes.LastIndex(pXML, []byte("</w:p>"))
		if closeIdx < 0 {
			return pXML, false
		}
		var out bytes.Buffer
		out.Write(pXML[:closeIdx])
		out.WriteString("<w:r><w:t>" + escapeXML(text) + "</w:t></w:r>")
		out.Write(pXML[closeIdx:])
		return out.Bytes(), false
	}

	nonEmpty := 0
	for _, run := range runs {
		if strings.TrimSpace(string(pXML[run.contentStart:run.contentEnd])) != "" {
			nonEmpty++
		}
	}

	var out bytes.Buffer
	cursor := 0
	for i, run := range runs {
		if run.selfClosing {
			if i != 0 {
				continue // already empty
			}
			// Expand <w:t/> so it can hold content.
			out.Write(pXML[cursor:run.tagStart])
			out.WriteString("<w:t>" + escapeXML(text) + "</w:t>")
			cursor = run.contentEnd
			continue
		}
		out.Write(pXML[cursor:run.contentStart])
		if i == 0 {
			out.WriteString(escapeXML(text))
		}
		cursor = run.contentEnd
	}
	out.Write(pXML[cursor:])
	return out.Bytes(), nonEmpty > 1
}

// appendToLastText extends the last non-empty text run with a suffix.
func appendToLastText(pXML []byte, suffix string) []byte {
	runs := findTextRuns(pXML)
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		if run.selfClosing {
			continue
		}
		if strings.TrimSpace(string(pXML[run.contentStart:run.contentEnd])) == "" {
			continue
		}
		var out bytes.Buffer
		out.Write(pXML[:run.contentEnd])
		out.WriteString(escapeXML(suffix))
		out.Write(pXML[run.contentEnd:])
		return out.Bytes()
	}
	out, _ := setParagraphText(pXML, strings.TrimPrefix(suffix, ", "))
	return out
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// rebuildDocx writes a new archive with document.xml replaced and every
// other entry copied through unchanged.
func rebuildDocx(original, newDocXML []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, fmt.Errorf("reopen docx archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		hdr := f.FileHeader
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", f.Name, err)
		}
		if f.Name == "word/document.xml" {
			if _, err := w.Write(newDocXML); err != nil {
				return nil, fmt.Errorf("write document.xml: %w", err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			return nil, fmt.Errorf("copy archive entry %s: %w", f.Name, err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx archive: %w", err)
	}
	return buf.Bytes(), nil
}
