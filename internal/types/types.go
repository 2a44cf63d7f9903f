package types

import "time"

// DocFormat identifies the source document format.
type DocFormat string

const (
	FormatDocx DocFormat = "docx"
	FormatPDF  DocFormat = "pdf"
	FormatText DocFormat = "text"
)

// Paragraph is one block of the extracted structural model. Index is the
// paragraph's position in the original byte layout and doubles as the
// formatting handle for editors that splice the original document.
type Paragraph struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Style     string `json:"style,omitempty"`
	IsBullet  bool   `json:"isBullet"`
	ListLevel int    `json:"listLevel,omitempty"`
	IsHeading bool   `json:"isHeading"`
	Digest    string `json:"digest"` // SHA-256 of the paragraph source at extraction time
}

// StructuralModel is the Text Extraction Layer output: raw text plus the
// paragraph-level layout the structurer builds the document tree from.
type StructuralModel struct {
	Format     DocFormat   `json:"format"`
	RawText    string      `json:"rawText"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// FormattingHandle is an opaque reference from a tree node back into the
// original byte layout. Only the document editor dereferences it.
type FormattingHandle struct {
	Paragraph int    `json:"paragraph"`
	Style     string `json:"style,omitempty"`
	Digest    string `json:"digest"` // pre-image hash; drift here means the anchor is stale
}

// SemanticTag classifies a section for edit targeting.
type SemanticTag string

const (
	TagSummary        SemanticTag = "summary"
	TagExperience     SemanticTag = "experience"
	TagSkills         SemanticTag = "skills"
	TagEducation      SemanticTag = "education"
	TagProjects       SemanticTag = "projects"
	TagCertifications SemanticTag = "certifications"
	TagOther          SemanticTag = "other"
)

// Bullet is a leaf node of the document tree.
type Bullet struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Handle     FormattingHandle `json:"handle"`
	OrderIndex int              `json:"orderIndex"`
}

// Entry groups consecutive bullets under their introducing paragraph,
// typically a job role or an education item.
type Entry struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Subtitle   string           `json:"subtitle,omitempty"` // company / date line when detected
	Bullets    []Bullet         `json:"bullets"`
	Handle     FormattingHandle `json:"handle"`
	OrderIndex int              `json:"orderIndex"`
}

// Section is a top-level region of the resume.
type Section struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Tag        SemanticTag      `json:"tag,omitempty"`
	Entries    []Entry          `json:"entries"`
	Handle     FormattingHandle `json:"handle"`
	OrderIndex int              `json:"orderIndex"`

	// SkillItems is the normalized skill list of a skills-tagged section:
	// individual items split out of the list lines, deduped
	// case-insensitively with the first spelling kept. Derived by the
	// tagger; empty for other tags.
	SkillItems []string `json:"skillItems,omitempty"`
}

// DocumentTree is the typed document model: Sections → Entries → Bullets.
type DocumentTree struct {
	Format   DocFormat `json:"format"`
	Sections []Section `json:"sections"`
}

// SeniorityLevel is the normalized seniority read out of a job description.
type SeniorityLevel string

const (
	SeniorityJunior    SeniorityLevel = "junior"
	SeniorityMid       SeniorityLevel = "mid"
	SenioritySenior    SeniorityLevel = "senior"
	SeniorityStaffPlus SeniorityLevel = "staff+"
)

// RequirementSummary is the normalized job-description summary. Immutable
// once produced.
type RequirementSummary struct {
	MustHaveSkills   []string           `json:"mustHaveSkills"`
	NiceToHaveSkills []string           `json:"niceToHaveSkills"`
	SeniorityLevel   SeniorityLevel     `json:"seniorityLevel"`
	KeywordWeights   map[string]float64 `json:"keywordWeights"`
	Degraded         bool               `json:"degraded,omitempty"` // heuristic fallback produced this summary
}

// GapKind enumerates the mismatch categories the analyzer can emit.
type GapKind string

const (
	GapMissingSkill        GapKind = "missing_skill"
	GapWeakEvidence        GapKind = "weak_evidence"
	GapTerminologyMismatch GapKind = "terminology_mismatch"
)

// Gap is a detected mismatch between resume content and requirements.
type Gap struct {
	Kind            GapKind `json:"kind"`
	Subject         string  `json:"subject"`
	Severity        float64 `json:"severity"`
	SuggestedTarget string  `json:"suggestedTarget,omitempty"` // node ID where evidence could be added
	Detail          string  `json:"detail,omitempty"`
}

// OpKind enumerates edit operation types.
type OpKind string

const (
	OpInsertBullet OpKind = "insert_bullet"
	OpModifyBullet OpKind = "modify_bullet"
	OpAddSkill     OpKind = "add_skill"
)

// EditOperation is an immutable, constrained edit with provenance.
type EditOperation struct {
	Op                 OpKind   `json:"op"`
	TargetAnchor       string   `json:"targetAnchor"` // node ID in the pre-edit tree
	PayloadText        string   `json:"payloadText"`
	Rationale          string   `json:"rationale,omitempty"`
	ConstraintsApplied []string `json:"constraintsApplied,omitempty"`
	GapSubject         string   `json:"gapSubject,omitempty"`
}

// DroppedOperation records an operation rejected at generation time
// together with the constraint it violated.
type DroppedOperation struct {
	Operation  EditOperation `json:"operation"`
	Constraint string        `json:"constraint"`
}

// Plan is an ordered list of edit operations. An empty plan is a valid,
// non-error outcome.
type Plan struct {
	Operations  []EditOperation    `json:"operations"`
	Dropped     []DroppedOperation `json:"dropped,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// SkippedOperation records a per-operation anchor failure during apply.
type SkippedOperation struct {
	Operation EditOperation `json:"operation"`
	Reason    string        `json:"reason"`
}

// ApplyResult is the document editor's outcome: a best-effort edit that
// records partial failures instead of aborting.
type ApplyResult struct {
	Applied      []EditOperation    `json:"applied"`
	Skipped      []SkippedOperation `json:"skipped,omitempty"`
	FlaggedSpans []string           `json:"flaggedSpans,omitempty"` // formatted runs an edit overlapped
	DocumentPath string             `json:"documentPath"`
}

// Violation is one failed verification rule.
type Violation struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// SectionDiff counts bullet-level changes within one section.
type SectionDiff struct {
	Added   int `json:"added"`
	Changed int `json:"changed"`
	Removed int `json:"removed"`
}

// VerificationReport is the verifier's verdict over an applied plan.
type VerificationReport struct {
	Passed       bool                   `json:"passed"`
	Violations   []Violation            `json:"violations,omitempty"`
	DiffSummary  map[string]SectionDiff `json:"diffSummary"`
	WordDelta    int                    `json:"wordDelta"`
	AddedSkills  []string               `json:"addedSkills,omitempty"`
	AppliedCount int                    `json:"appliedCount"`
	SkippedCount int                    `json:"skippedCount"`
}
