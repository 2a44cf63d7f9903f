// Package formatters renders pipeline results for the CLI: JSON for
// machines, text and markdown for people.
package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"resumeforge/internal/types"
	"resumeforge/internal/workflow"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "AnalysisResult", &AnalysisTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalysisResult", &AnalysisMarkdownFormatter{})
	registry.RegisterFormatter("text", "EnhanceResult", &EnhanceTextFormatter{})
	registry.RegisterFormatter("markdown", "EnhanceResult", &EnhanceMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case workflow.AnalysisResult, *workflow.AnalysisResult:
		return "AnalysisResult"
	case workflow.EnhanceResult, *workflow.EnhanceResult:
		return "EnhanceResult"
	default:
		return "any"
	}
}

func asAnalysisResult(data any) (*workflow.AnalysisResult, error) {
	switch v := data.(type) {
	case *workflow.AnalysisResult:
		return v, nil
	case workflow.AnalysisResult:
		return &v, nil
	default:
		return nil, fmt.Errorf("expected AnalysisResult, got %T", data)
	}
}

func asEnhanceResult(data any) (*workflow.EnhanceResult, error) {
	switch v := data.(type) {
	case *workflow.EnhanceResult:
		return v, nil
	case workflow.EnhanceResult:
		return &v, nil
	default:
		return nil, fmt.Errorf("expected EnhanceResult, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// weightedSkills renders skills with their keyword weights when known.
func weightedSkills(skills []string, weights map[string]float64) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		if w, ok := weights[skill]; ok && w > 0 {
			out = append(out, fmt.Sprintf("%s (weight %.2f)", skill, w))
		} else {
			out = append(out, skill)
		}
	}
	return out
}

// AnalysisTextFormatter handles text formatting for analysis results
type AnalysisTextFormatter struct{}

func (atf *AnalysisTextFormatter) Format(data any) (string, error) {
	result, err := asAnalysisResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== JOB REQUIREMENTS ===\n\n")
	output.WriteString(fmt.Sprintf("Seniority: %s\n", result.Summary.SeniorityLevel))
	if result.Summary.Degraded {
		output.WriteString("Note: heuristic summary (AI unavailable)\n")
	}
	output.WriteString("\nMust-have skills:\n")
	for _, skill := range weightedSkills(result.Summary.MustHaveSkills, result.Summary.KeywordWeights) {
		output.WriteString(fmt.Sprintf("- %s\n", skill))
	}
	if len(result.Summary.NiceToHaveSkills) > 0 {
		output.WriteString("\nNice-to-have skills:\n")
		for _, skill := range weightedSkills(result.Summary.NiceToHaveSkills, result.Summary.KeywordWeights) {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
	}

	output.WriteString("\n=== GAP ANALYSIS ===\n\n")
	if len(result.Gaps) == 0 {
		output.WriteString("No gaps found.\n")
		return output.String(), nil
	}
	for i, gap := range result.Gaps {
		output.WriteString(fmt.Sprintf("%d. [%s] %s (severity %.2f)\n",
			i+1, gap.Kind, gap.Subject, gap.Severity))
		if gap.Detail != "" {
			output.WriteString(fmt.Sprintf("   %s\n", gap.Detail))
		}
		if gap.SuggestedTarget != "" {
			output.WriteString(fmt.Sprintf("   Suggested target: %s\n", gap.SuggestedTarget))
		}
	}

	return output.String(), nil
}

func (atf *AnalysisTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// AnalysisMarkdownFormatter handles markdown formatting for analysis results
type AnalysisMarkdownFormatter struct{}

func (amf *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, err := asAnalysisResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Job Requirements\n\n")
	output.WriteString(fmt.Sprintf("**Seniority:** %s\n\n", result.Summary.SeniorityLevel))
	if result.Summary.Degraded {
		output.WriteString("> Heuristic summary (AI unavailable)\n\n")
	}
	output.WriteString("## Must-Have Skills\n\n")
	for _, skill := range weightedSkills(result.Summary.MustHaveSkills, result.Summary.KeywordWeights) {
		output.WriteString(fmt.Sprintf("- %s\n", skill))
	}
	output.WriteString("\n")
	if len(result.Summary.NiceToHaveSkills) > 0 {
		output.WriteString("## Nice-to-Have Skills\n\n")
		for _, skill := range weightedSkills(result.Summary.NiceToHaveSkills, result.Summary.KeywordWeights) {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
		output.WriteString("\n")
	}

	output.WriteString("# Gap Analysis\n\n")
	if len(result.Gaps) == 0 {
		output.WriteString("No gaps found.\n")
		return output.String(), nil
	}
	for i, gap := range result.Gaps {
		output.WriteString(fmt.Sprintf("### %d. %s — %s\n\n", i+1, gap.Kind, gap.Subject))
		output.WriteString(fmt.Sprintf("**Severity:** %.2f\n\n", gap.Severity))
		if gap.Detail != "" {
			output.WriteString(gap.Detail)
			output.WriteString("\n\n")
		}
	}

	return output.String(), nil
}

func (amf *AnalysisMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

func writeSectionDiffs(output *strings.Builder, diffs map[string]types.SectionDiff, prefix string) {
	titles := make([]string, 0, len(diffs))
	for title := range diffs {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		d := diffs[title]
		if d.Added == 0 && d.Changed == 0 && d.Removed == 0 {
			continue
		}
		output.WriteString(fmt.Sprintf("%s%s: +%d added, %d changed, %d removed\n",
			prefix, title, d.Added, d.Changed, d.Removed))
	}
}

// EnhanceTextFormatter handles text formatting for enhancement results
type EnhanceTextFormatter struct{}

func (etf *EnhanceTextFormatter) Format(data any) (string, error) {
	result, err := asEnhanceResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== ENHANCEMENT RESULT ===\n\n")
	if result.Record != nil {
		output.WriteString(fmt.Sprintf("Request ID: %s\n", result.Record.RequestID))
		output.WriteString(fmt.Sprintf("Status: %s\n", result.Record.Status))
		output.WriteString(fmt.Sprintf("Gaps found: %d\n", result.Record.Counts.Gaps))
		output.WriteString(fmt.Sprintf("Operations: %d planned, %d applied, %d skipped\n",
			result.Record.Counts.PlannedOps, result.Record.Counts.AppliedOps,
			result.Record.Counts.SkippedOps))
	}
	if result.OutputPath != "" {
		output.WriteString(fmt.Sprintf("Enhanced document: %s\n", result.OutputPath))
	}

	output.WriteString("\n=== VERIFICATION ===\n")
	if result.Report.Passed {
		output.WriteString("Passed\n")
	} else {
		output.WriteString("FAILED\n")
		for _, v := range result.Report.Violations {
			output.WriteString(fmt.Sprintf("- [%s] %s\n", v.Rule, v.Detail))
		}
	}
	output.WriteString(fmt.Sprintf("Word delta: %+d\n", result.Report.WordDelta))
	if len(result.Report.AddedSkills) > 0 {
		output.WriteString(fmt.Sprintf("Added skills: %s\n",
			strings.Join(result.Report.AddedSkills, ", ")))
	}
	if len(result.Report.DiffSummary) > 0 {
		output.WriteString("\nSection changes:\n")
		writeSectionDiffs(&output, result.Report.DiffSummary, "- ")
	}

	return output.String(), nil
}

func (etf *EnhanceTextFormatter) SupportedType() string {
	return "EnhanceResult"
}

// EnhanceMarkdownFormatter handles markdown formatting for enhancement results
type EnhanceMarkdownFormatter struct{}

func (emf *EnhanceMarkdownFormatter) Format(data any) (string, error) {
	result, err := asEnhanceResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Enhancement Result\n\n")
	if result.Record != nil {
		output.WriteString(fmt.Sprintf("**Request ID:** %s\n\n", result.Record.RequestID))
		output.WriteString(fmt.Sprintf("**Status:** %s\n\n", result.Record.Status))
		output.WriteString(fmt.Sprintf("**Operations:** %d planned, %d applied, %d skipped\n\n",
			result.Record.Counts.PlannedOps, result.Record.Counts.AppliedOps,
			result.Record.Counts.SkippedOps))
	}
	if result.OutputPath != "" {
		output.WriteString(fmt.Sprintf("**Enhanced document:** `%s`\n\n", result.OutputPath))
	}

	output.WriteString("## Verification\n\n")
	if result.Report.Passed {
		output.WriteString("Passed.\n\n")
	} else {
		output.WriteString("**Failed.**\n\n")
		for _, v := range result.Report.Violations {
			output.WriteString(fmt.Sprintf("- **%s:** %s\n", v.Rule, v.Detail))
		}
		output.WriteString("\n")
	}
	output.WriteString(fmt.Sprintf("**Word delta:** %+d\n\n", result.Report.WordDelta))
	if len(result.Report.AddedSkills) > 0 {
		output.WriteString(fmt.Sprintf("**Added skills:** %s\n\n",
			strings.Join(result.Report.AddedSkills, ", ")))
	}
	if len(result.Report.DiffSummary) > 0 {
		output.WriteString("## Section Changes\n\n")
		writeSectionDiffs(&output, result.Report.DiffSummary, "- ")
	}

	return output.String(), nil
}

func (emf *EnhanceMarkdownFormatter) SupportedType() string {
	return "EnhanceResult"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
