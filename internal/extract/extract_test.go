package extract

import (
	"strings"
	"testing"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

func testLogger(t *testing.T) *errors.Logger {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return logger
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename  string
		want      types.DocFormat
		expectErr bool
	}{
		{filename: "resume.docx", want: types.FormatDocx},
		{filename: "Resume.DOCX", want: types.FormatDocx},
		{filename: "resume.pdf", want: types.FormatPDF},
		{filename: "resume.txt", want: types.FormatText},
		{filename: "resume.md", want: types.FormatText},
		{filename: "resume.doc", expectErr: true},
		{filename: "resume", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got format %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got format %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := New(testLogger(t))
	_, err := e.Extract(nil, types.FormatText)
	if !errors.IsCode(err, errors.ErrCodeStructureInvalid) {
		t.Fatalf("expected STRUCTURE_INVALID, got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	input := strings.Join([]string{
		"Jane Doe",
		"",
		"EXPERIENCE",
		"Senior Engineer at Acme",
		"- Built a data platform serving 2M users",
		"- Led a team of 5 engineers",
		"",
		"SKILLS",
		"Go, Python, SQL",
	}, "\n")

	e := New(testLogger(t))
	model, err := e.Extract([]byte(input), types.FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(model.Paragraphs) != 7 {
		t.Fatalf("got %d paragraphs, want 7", len(model.Paragraphs))
	}

	if !model.Paragraphs[1].IsHeading {
		t.Errorf("expected EXPERIENCE to be a heading")
	}
	if !model.Paragraphs[3].IsBullet {
		t.Errorf("expected dash line to be a bullet")
	}
	if model.Paragraphs[3].IsHeading {
		t.Errorf("bullet must not be a heading")
	}

	for i, p := range model.Paragraphs {
		if p.Index != i {
			t.Errorf("paragraph %d has index %d", i, p.Index)
		}
		if p.Digest == "" {
			t.Errorf("paragraph %d missing digest", i)
		}
	}

	if !strings.Contains(model.RawText, "Built a data platform") {
		t.Errorf("raw text missing bullet content")
	}
}

func TestExtractMarkdownHeadings(t *testing.T) {
	input := "# Jane Doe\n\n## Experience\n\n* Shipped things\n"

	e := New(testLogger(t))
	model, err := e.Extract([]byte(input), types.FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(model.Paragraphs) != 3 {
		t.Fatalf("got %d paragraphs, want 3", len(model.Paragraphs))
	}
	if !model.Paragraphs[1].IsHeading || model.Paragraphs[1].Text != "Experience" {
		t.Errorf("expected markdown heading 'Experience', got %+v", model.Paragraphs[1])
	}
	if !model.Paragraphs[2].IsBullet {
		t.Errorf("expected star line to be a bullet")
	}
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Experience</w:t></w:r></w:p>
    <w:p><w:r><w:t>Senior Engineer, Acme</w:t></w:r></w:p>
    <w:p>
      <w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr>
      <w:r><w:t>Built a data </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>platform</w:t></w:r>
    </w:p>
    <w:p><w:r><w:t xml:space="preserve">   </w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestParseDocumentXML(t *testing.T) {
	paragraphs, err := parseDocumentXML([]byte(sampleDocumentXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(paragraphs) != 4 {
		t.Fatalf("got %d paragraphs, want 4 (whitespace-only dropped)", len(paragraphs))
	}

	if !paragraphs[0].IsHeading || paragraphs[0].Style != "Title" {
		t.Errorf("expected Title paragraph to be a heading, got %+v", paragraphs[0])
	}
	if !paragraphs[1].IsHeading || paragraphs[1].Style != "Heading1" {
		t.Errorf("expected Heading1 paragraph to be a heading, got %+v", paragraphs[1])
	}
	if paragraphs[2].IsBullet || paragraphs[2].IsHeading {
		t.Errorf("role line should be neither bullet nor heading, got %+v", paragraphs[2])
	}
	if !paragraphs[3].IsBullet {
		t.Errorf("numbered paragraph should be a bullet, got %+v", paragraphs[3])
	}
	// Runs are concatenated across formatting boundaries.
	if paragraphs[3].Text != "Built a data platform" {
		t.Errorf("got bullet text %q", paragraphs[3].Text)
	}
}

func TestParagraphDigestIgnoresSpacing(t *testing.T) {
	a := paragraphDigest("Built  a data platform")
	b := paragraphDigest("Built a data platform")
	if a != b {
		t.Errorf("digest should normalize whitespace")
	}
	c := paragraphDigest("Built a data platform v2")
	if a == c {
		t.Errorf("different text must not collide")
	}
}
