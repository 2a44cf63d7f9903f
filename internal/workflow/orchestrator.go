// Package workflow drives the enhancement pipeline as an explicit state
// machine: received, parsing, tagging, gap analysis, planning, editing,
// verification, and a terminal completed or failed. Every stage records
// an artifact, honors the per-stage retry budget, and observes
// cancellation between stages.
package workflow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"resumeforge/internal/ai"
	"resumeforge/internal/config"
	"resumeforge/internal/editor"
	"resumeforge/internal/errors"
	"resumeforge/internal/extract"
	"resumeforge/internal/gap"
	"resumeforge/internal/jd"
	"resumeforge/internal/planner"
	"resumeforge/internal/structurer"
	"resumeforge/internal/tagger"
	"resumeforge/internal/types"
	"resumeforge/internal/verify"
)

// StageRecorder receives stage and workflow outcomes for metrics. The
// observability package provides the real implementation.
type StageRecorder interface {
	RecordStage(ctx context.Context, stage string, duration time.Duration, success bool)
	RecordWorkflow(ctx context.Context, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordStage(context.Context, string, time.Duration, bool) {}
func (noopRecorder) RecordWorkflow(context.Context, string)                   {}

// Orchestrator owns the pipeline stages and the record store.
type Orchestrator struct {
	cfg        config.PipelineConfig
	store      *Store
	summarizer *jd.Summarizer
	extractor  *extract.Extractor
	structurer *structurer.Structurer
	tagger     *tagger.Tagger
	analyzer   *gap.Analyzer
	planner    *planner.Planner
	editor     *editor.Editor
	verifier   *verify.Verifier
	metrics    StageRecorder
	logger     *errors.Logger
}

// New wires the pipeline. provider may be nil, which degrades the AI
// stages to their deterministic fallbacks; metrics may be nil.
func New(cfg config.PipelineConfig, provider ai.Provider, metrics StageRecorder, logger *errors.Logger) *Orchestrator {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      NewStore(),
		summarizer: jd.New(provider, logger),
		extractor:  extract.New(logger),
		structurer: structurer.New(logger),
		tagger:     tagger.New(cfg.FuzzyMatchThreshold, logger),
		analyzer:   gap.New(cfg.QuantifiedRatio, logger),
		planner:    planner.New(provider, logger),
		editor:     editor.New(logger),
		verifier:   verify.New(cfg.SectionGrowthLimit, logger),
		metrics:    metrics,
		logger:     logger,
	}
}

// EnhanceInput is one enhancement request.
type EnhanceInput struct {
	JobText  string
	Document []byte
	Filename string
}

// EnhanceResult is the outcome of a completed workflow.
type EnhanceResult struct {
	Record     *types.WorkflowRecord
	Report     types.VerificationReport
	OutputPath string
}

// AnalysisResult is the read-only flow's outcome: what would be fixed,
// without touching the document.
type AnalysisResult struct {
	Summary types.RequirementSummary `json:"summary"`
	Gaps    []types.Gap              `json:"gaps"`
}

func (in EnhanceInput) validate() (types.DocFormat, error) {
	format, err := extract.DetectFormat(in.Filename)
	if err != nil {
		return "", err
	}
	if len(in.Document) == 0 {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"resume document is empty", nil)
	}
	if in.JobText == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job description is empty", nil)
	}
	return format, nil
}

// Enhance runs one workflow synchronously and returns its result.
func (o *Orchestrator) Enhance(ctx context.Context, in EnhanceInput) (*EnhanceResult, error) {
	format, err := in.validate()
	if err != nil {
		return nil, err
	}
	requestID := NewRequestID(time.Now())
	o.store.Create(requestID, time.Now())
	return o.run(ctx, requestID, in, format)
}

// Start begins a workflow in the background and returns its request ID
// immediately. The workflow outlives the caller's request context.
func (o *Orchestrator) Start(in EnhanceInput) (string, error) {
	format, err := in.validate()
	if err != nil {
		return "", err
	}
	requestID := NewRequestID(time.Now())
	o.store.Create(requestID, time.Now())

	go func() {
		if _, err := o.run(context.Background(), requestID, in, format); err != nil {
			o.logger.Warn("workflow finished with error", "request_id", requestID, "error", err)
		}
	}()

	return requestID, nil
}

// Analyze runs the read-only flow: summary, structure, tags, gaps. No
// record is created and no document is modified.
func (o *Orchestrator) Analyze(ctx context.Context, in EnhanceInput) (*AnalysisResult, error) {
	format, err := in.validate()
	if err != nil {
		return nil, err
	}

	var summary types.RequirementSummary
	var tree *types.DocumentTree

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := o.summarizer.Summarize(gctx, in.JobText)
		if err == nil {
			summary = s
		}
		return err
	})
	g.Go(func() error {
		model, err := o.extractor.Extract(in.Document, format)
		if err != nil {
			return err
		}
		tree, err = o.structurer.Build(model)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.tagger.Tag(tree)
	return &AnalysisResult{
		Summary: summary,
		Gaps:    o.analyzer.Analyze(tree, summary),
	}, nil
}

// Status returns a clone of the workflow record.
func (o *Orchestrator) Status(requestID string) (*types.WorkflowRecord, error) {
	return o.store.Get(requestID)
}

// Cancel requests cancellation; the workflow stops at the next stage
// boundary.
func (o *Orchestrator) Cancel(requestID string) error {
	return o.store.Cancel(requestID)
}

// Delete removes the record and its working directory.
func (o *Orchestrator) Delete(requestID string) error {
	if err := o.store.Delete(requestID); err != nil {
		return err
	}
	return os.RemoveAll(o.workDir(requestID))
}

// List returns all workflow records, newest first.
func (o *Orchestrator) List() []*types.WorkflowRecord {
	return o.store.List()
}

// Stats aggregates workflow counts by state.
func (o *Orchestrator) Stats() map[string]int {
	return o.store.Stats()
}

func (o *Orchestrator) workDir(requestID string) string {
	return filepath.Join(o.cfg.WorkDir, requestID)
}

func (o *Orchestrator) run(ctx context.Context, requestID string, in EnhanceInput, format types.DocFormat) (*EnhanceResult, error) {
	workDir := o.workDir(requestID)
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, o.fail(ctx, requestID,
			errors.NewIOError(errors.ErrCodeFileNotReadable, "create working directory", err))
	}

	var summary types.RequirementSummary
	var tree *types.DocumentTree

	// The job description and the resume parse independently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.stage(gctx, requestID, types.StateParsingJD, func() error {
			s, err := o.summarizer.Summarize(gctx, in.JobText)
			if err != nil {
				return err
			}
			summary = s
			return o.writeArtifact(requestID, types.StateParsingJD, s)
		})
	})
	g.Go(func() error {
		return o.stage(gctx, requestID, types.StateParsingResume, func() error {
			model, err := o.extractor.Extract(in.Document, format)
			if err != nil {
				return err
			}
			t, err := o.structurer.Build(model)
			if err != nil {
				return err
			}
			tree = t
			return o.writeArtifact(requestID, types.StateParsingResume, t)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, o.fail(ctx, requestID, err)
	}

	err := o.stage(ctx, requestID, types.StateTagging, func() error {
		o.tagger.Tag(tree)
		return o.writeArtifact(requestID, types.StateTagging, tree)
	})
	if err != nil {
		return nil, o.fail(ctx, requestID, err)
	}

	var gaps []types.Gap
	err = o.stage(ctx, requestID, types.StateAnalyzingGaps, func() error {
		gaps = o.analyzer.Analyze(tree, summary)
		return o.writeArtifact(requestID, types.StateAnalyzingGaps, gaps)
	})
	if err != nil {
		return nil, o.fail(ctx, requestID, err)
	}
	o.store.Update(requestID, func(r *types.WorkflowRecord) { r.Counts.Gaps = len(gaps) })

	constraints := planner.Constraints{
		SectionGrowthLimit: o.cfg.SectionGrowthLimit,
		MaxNewBullets:      o.cfg.MaxNewBullets,
		MaxBulletsPerEntry: o.cfg.MaxBulletsPerEntry,
	}

	result, err := o.planAndApply(ctx, requestID, in, format, tree, summary, gaps, constraints)
	if err != nil {
		return nil, o.fail(ctx, requestID, err)
	}

	if !result.Report.Passed {
		// One regeneration pass under tighter constraints before giving up.
		o.logger.Warn("verification failed, regenerating plan with tighter constraints",
			"request_id", requestID, "violations", len(result.Report.Violations))
		o.store.Update(requestID, func(r *types.WorkflowRecord) {
			r.RetryCounts[string(types.StateVerifying)]++
		})

		result, err = o.planAndApply(ctx, requestID, in, format, tree, summary, gaps, constraints.Tightened())
		if err != nil {
			return nil, o.fail(ctx, requestID, err)
		}
		if !result.Report.Passed {
			return nil, o.fail(ctx, requestID,
				errors.NewPipelineError(errors.ErrCodeVerificationFailed,
					fmt.Sprintf("verification failed after constraint tightening: %d violation(s)",
						len(result.Report.Violations)), nil))
		}
	}

	o.store.Update(requestID, func(r *types.WorkflowRecord) {
		r.Status = types.StateCompleted
	})
	o.metrics.RecordWorkflow(ctx, "completed")

	rec, err := o.store.Get(requestID)
	if err != nil {
		return nil, err
	}
	result.Record = rec
	return result, nil
}

// planAndApply runs the plan, edit, and verify stages once. The
// workflow calls it a second time with tightened constraints when
// verification rejects the first attempt.
func (o *Orchestrator) planAndApply(ctx context.Context, requestID string, in EnhanceInput, format types.DocFormat, tree *types.DocumentTree, summary types.RequirementSummary, gaps []types.Gap, constraints planner.Constraints) (*EnhanceResult, error) {
	var plan types.Plan
	err := o.stage(ctx, requestID, types.StateGeneratingPlan, func() error {
		p, err := o.planner.Generate(ctx, tree, summary, gaps, constraints)
		if err != nil {
			return err
		}
		plan = p
		return o.writeArtifact(requestID, types.StateGeneratingPlan, p)
	})
	if err != nil {
		return nil, err
	}
	o.store.Update(requestID, func(r *types.WorkflowRecord) {
		r.Counts.PlannedOps = len(plan.Operations)
	})

	var edited []byte
	var outFormat types.DocFormat
	var applyResult types.ApplyResult
	var outputPath string
	err = o.stage(ctx, requestID, types.StateEditing, func() error {
		out, f, res, err := o.editor.Apply(in.Document, format, tree, plan)
		if err != nil {
			return err
		}
		edited, outFormat, applyResult = out, f, res

		outputPath = filepath.Join(o.workDir(requestID), "enhanced_"+requestID+extensionFor(f))
		if err := os.WriteFile(outputPath, edited, 0o640); err != nil {
			return errors.NewIOError(errors.ErrCodeFileNotReadable, "write enhanced document", err)
		}
		applyResult.DocumentPath = outputPath
		return o.writeArtifact(requestID, types.StateEditing, applyResult)
	})
	if err != nil {
		return nil, err
	}
	o.store.Update(requestID, func(r *types.WorkflowRecord) {
		r.Counts.AppliedOps = len(applyResult.Applied)
		r.Counts.SkippedOps = len(applyResult.Skipped)
		r.DocumentPath = outputPath
	})

	var report types.VerificationReport
	err = o.stage(ctx, requestID, types.StateVerifying, func() error {
		rep, err := o.verifier.Verify(tree, edited, outFormat, applyResult)
		if err != nil {
			return err
		}
		report = rep
		return o.writeArtifact(requestID, types.StateVerifying, rep)
	})
	if err != nil {
		return nil, err
	}

	return &EnhanceResult{Report: report, OutputPath: outputPath}, nil
}

// stage moves the record into the given state and executes fn under the
// retry budget. Only transient AI and network failures are retried.
func (o *Orchestrator) stage(ctx context.Context, requestID string, state types.WorkflowState, fn func() error) error {
	if err := o.cancelledErr(ctx, requestID); err != nil {
		return err
	}
	if err := o.store.Update(requestID, func(r *types.WorkflowRecord) { r.Status = state }); err != nil {
		return err
	}

	var err error
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err = fn()
		o.metrics.RecordStage(ctx, string(state), time.Since(start), err == nil)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= o.cfg.StageRetryLimit {
			return err
		}
		o.store.Update(requestID, func(r *types.WorkflowRecord) {
			r.RetryCounts[string(state)]++
		})
		o.logger.Warn("stage failed, retrying",
			"request_id", requestID, "stage", string(state),
			"attempt", attempt+1, "error", err)
	}
}

func (o *Orchestrator) cancelledErr(ctx context.Context, requestID string) error {
	if ctx.Err() != nil || o.store.Cancelled(requestID) {
		return errors.NewPipelineError(errors.ErrCodeWorkflowCancelled,
			"workflow cancelled", ctx.Err())
	}
	return nil
}

// retryable reports whether a stage error is worth another attempt.
// Document and constraint problems are deterministic; retrying them
// burns budget for the same answer.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeAIServiceFailed, errors.ErrCodeAITimeout, errors.ErrCodeNetworkTimeout:
		return true
	}
	return false
}

// fail drives the record to the failed state, records the public error
// kind, and cleans up working storage unless artifacts are retained.
func (o *Orchestrator) fail(ctx context.Context, requestID string, err error) error {
	kind := errors.CodeOf(err)
	if kind == "" {
		kind = "INTERNAL"
	}

	o.store.Update(requestID, func(r *types.WorkflowRecord) {
		r.Status = types.StateFailed
		r.Error = &types.WorkflowError{Kind: kind, Message: publicMessage(err)}
	})

	outcome := "failed"
	if kind == errors.ErrCodeWorkflowCancelled {
		outcome = "cancelled"
	}
	o.metrics.RecordWorkflow(ctx, outcome)

	if !o.cfg.RetainArtifacts {
		if rmErr := os.RemoveAll(o.workDir(requestID)); rmErr != nil {
			o.logger.Warn("working directory cleanup failed",
				"request_id", requestID, "error", rmErr)
		}
		o.store.deleteArtifactPaths(requestID)
	}

	o.logger.LogError(err, "workflow failed",
		"request_id", requestID, "kind", kind)
	return err
}

// publicMessage extracts the caller-safe message from an error.
func publicMessage(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func extensionFor(format types.DocFormat) string {
	switch format {
	case types.FormatDocx:
		return ".docx"
	case types.FormatPDF:
		return ".pdf"
	default:
		return ".txt"
	}
}

// writeArtifact persists one stage's output as {stage}_{request_id}.json
// in the working directory and records its path.
func (o *Orchestrator) writeArtifact(requestID string, state types.WorkflowState, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat, "marshal stage artifact", err)
	}
	path := filepath.Join(o.workDir(requestID), fmt.Sprintf("%s_%s.json", state, requestID))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "write stage artifact", err)
	}
	o.store.Update(requestID, func(r *types.WorkflowRecord) {
		r.ArtifactPaths[string(state)] = path
	})
	return nil
}
