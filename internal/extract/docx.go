package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"resumeforge/internal/types"
)

// extractDocx reads word/document.xml out of the docx archive and walks
// its paragraphs with a streaming tokenizer, keeping the style and
// numbering properties the structurer and editor rely on.
func extractDocx(data []byte) ([]types.Paragraph, error) {
	docXML, err := ReadDocumentXML(data)
	if err != nil {
		return nil, err
	}
	return parseDocumentXML(docXML)
}

// ReadDocumentXML returns the raw word/document.xml bytes from a docx
// archive. The document editor uses it to splice paragraph XML.
func ReadDocumentXML(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("no word/document.xml found in docx")
}

func parseDocumentXML(docXML []byte) ([]types.Paragraph, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var paragraphs []types.Paragraph
	var (
		inParagraph bool
		inText      bool
		text        strings.Builder
		style       string
		isBullet    bool
		listLevel   int
	)

	flush := func() {
		trimmed := strings.TrimSpace(text.String())
		if trimmed != "" {
			paragraphs = append(paragraphs, types.Paragraph{
				Index:     len(paragraphs),
				Text:      trimmed,
				Style:     style,
				IsBullet:  isBullet || looksLikeBullet(trimmed),
				ListLevel: listLevel,
				IsHeading: strings.HasPrefix(style, "Heading") || style == "Title",
				Digest:    paragraphDigest(trimmed),
			})
		}
		text.Reset()
		style = ""
		isBullet = false
		listLevel = 0
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					text.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					text.WriteByte(' ')
				}
			case "pStyle":
				style = attrVal(t, "val")
			case "numPr":
				isBullet = true
			case "ilvl":
				if v := attrVal(t, "val"); v != "" {
					listLevel = atoiOrZero(v)
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inParagraph = false
				flush()
			}
		}
	}

	return paragraphs, nil
}

func attrVal(el xml.StartElement, name string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
