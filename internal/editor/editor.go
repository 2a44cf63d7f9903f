// Package editor applies an edit plan to the original document bytes
// while preserving everything the plan does not touch. Operations are
// anchored by paragraph index plus a pre-image digest; an anchor whose
// paragraph has drifted is skipped and recorded, never guessed.
package editor

import (
	"sort"

	"resumeforge/internal/errors"
	"resumeforge/internal/extract"
	"resumeforge/internal/types"
)

// Editor splices plan operations into document bytes.
type Editor struct {
	extractor *extract.Extractor
	logger    *errors.Logger
}

// New creates an Editor.
func New(logger *errors.Logger) *Editor {
	return &Editor{extractor: extract.New(logger), logger: logger}
}

// mutation is one splice against the pre-edit paragraph numbering. All
// mutations are resolved before any is applied, so indexes never shift
// under an operation.
type mutation struct {
	kind      mutKind
	index     int    // paragraph ordinal in the pre-edit model
	cloneFrom int    // insert: ordinal of the sibling bullet to clone, -1 for none
	text      string // replacement, inserted, or appended text
	anchor    string // node ID, for flagged-span reporting
	seq       int    // plan order, stabilizes inserts at the same index
}

type mutKind int

const (
	mutReplace mutKind = iota
	mutInsertAfter
	mutAppend
)

// Apply executes the plan against the original document. PDF input is
// edited on its plain-text rendition, so the returned format can differ
// from the input format. Unresolvable anchors become skipped
// operations; only an unreadable document is a hard error.
func (e *Editor) Apply(original []byte, format types.DocFormat, tree *types.DocumentTree, plan types.Plan) ([]byte, types.DocFormat, types.ApplyResult, error) {
	result := types.ApplyResult{}

	data, outFormat, err := e.workingCopy(original, format)
	if err != nil {
		return nil, "", result, err
	}

	// Drift detection baseline: the document as it is right now.
	model, err := e.extractor.Extract(data, outFormat)
	if err != nil {
		return nil, "", result, err
	}

	var muts []mutation
	for i, op := range plan.Operations {
		mut, reason := e.resolve(tree, model, op)
		if reason != "" {
			result.Skipped = append(result.Skipped, types.SkippedOperation{Operation: op, Reason: reason})
			e.logger.Warn("skipped operation",
				"op", string(op.Op), "anchor", op.TargetAnchor, "reason", reason)
			continue
		}
		mut.seq = i
		muts = append(muts, mut)
		result.Applied = append(result.Applied, op)
	}

	if len(muts) == 0 {
		return data, outFormat, result, nil
	}

	sort.SliceStable(muts, func(i, j int) bool {
		if muts[i].index != muts[j].index {
			return muts[i].index < muts[j].index
		}
		return muts[i].seq < muts[j].seq
	})

	var b backend
	switch outFormat {
	case types.FormatDocx:
		b, err = newDocxBackend(data)
	default:
		b = newTextBackend(data)
	}
	if err != nil {
		return nil, "", result, err
	}

	out, flagged, err := b.apply(muts)
	if err != nil {
		return nil, "", result, err
	}
	result.FlaggedSpans = flagged

	e.logger.Info("applied edit plan",
		"applied", len(result.Applied),
		"skipped", len(result.Skipped),
		"flagged", len(result.FlaggedSpans))

	return out, outFormat, result, nil
}

// workingCopy returns the bytes the backends edit. PDFs cannot be
// rewritten in place, so their text rendition becomes the working
// document.
func (e *Editor) workingCopy(original []byte, format types.DocFormat) ([]byte, types.DocFormat, error) {
	if format != types.FormatPDF {
		return original, format, nil
	}
	model, err := e.extractor.Extract(original, types.FormatPDF)
	if err != nil {
		return nil, "", err
	}
	return []byte(model.RawText + "\n"), types.FormatText, nil
}

// resolve turns one operation into a mutation, or a skip reason.
func (e *Editor) resolve(tree *types.DocumentTree, model *types.StructuralModel, op types.EditOperation) (mutation, string) {
	ref, ok := tree.FindNode(op.TargetAnchor)
	if !ok {
		return mutation{}, "anchor not found in document tree"
	}

	switch op.Op {
	case types.OpModifyBullet:
		if ref.Bullet == nil {
			return mutation{}, "modify target is not a bullet"
		}
		if reason := checkAnchor(model, ref.Bullet.Handle); reason != "" {
			return mutation{}, reason
		}
		return mutation{
			kind:   mutReplace,
			index:  ref.Bullet.Handle.Paragraph,
			text:   op.PayloadText,
			anchor: op.TargetAnchor,
		}, ""

	case types.OpInsertBullet:
		handle, clone := insertionPoint(ref)
		if reason := checkAnchor(model, handle); reason != "" {
			return mutation{}, reason
		}
		return mutation{
			kind:      mutInsertAfter,
			index:     handle.Paragraph,
			cloneFrom: clone,
			text:      op.PayloadText,
			anchor:    op.TargetAnchor,
		}, ""

	case types.OpAddSkill:
		if ref.Section == nil {
			return mutation{}, "add_skill target is not a section"
		}
		handle, ok := ref.Section.LastContentHandle()
		if !ok {
			return mutation{}, "section has no content paragraph to extend"
		}
		if reason := checkAnchor(model, handle); reason != "" {
			return mutation{}, reason
		}
		return mutation{
			kind:   mutAppend,
			index:  handle.Paragraph,
			text:   op.PayloadText,
			anchor: op.TargetAnchor,
		}, ""

	default:
		return mutation{}, "unknown operation kind"
	}
}

// checkAnchor verifies the pre-image digest still matches the paragraph
// the handle points at.
func checkAnchor(model *types.StructuralModel, h types.FormattingHandle) string {
	if h.Paragraph < 0 || h.Paragraph >= len(model.Paragraphs) {
		return "anchor paragraph index out of range"
	}
	if model.Paragraphs[h.Paragraph].Digest != h.Digest {
		return "anchor paragraph content drifted since parsing"
	}
	return ""
}

// insertionPoint finds where a new bullet goes: after the entry's last
// bullet when one exists (which also serves as the formatting clone
// source), otherwise directly after the entry or section paragraph.
func insertionPoint(ref types.NodeRef) (types.FormattingHandle, int) {
	if ref.Entry != nil {
		if n := len(ref.Entry.Bullets); n > 0 {
			h := ref.Entry.Bullets[n-1].Handle
			return h, h.Paragraph
		}
		return ref.Entry.Handle, -1
	}
	if n := len(ref.Section.Entries); n > 0 {
		last := &ref.Section.Entries[n-1]
		if m := len(last.Bullets); m > 0 {
			h := last.Bullets[m-1].Handle
			return h, h.Paragraph
		}
		return last.Handle, -1
	}
	return ref.Section.Handle, -1
}

// backend splices resolved mutations into one concrete document format.
type backend interface {
	apply(muts []mutation) (out []byte, flaggedSpans []string, err error)
}
