package cli

import (
	"fmt"
	"path/filepath"

	"resumeforge/internal/common"
	"resumeforge/internal/workflow"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file] [job-description-file]",
	Short: "Analyze a resume against a job description without editing it",
	Long: `Run the read-only half of the enhancement pipeline: summarize the job
description, structure the resume, and report the gaps between them.
No edits are planned or applied and no files are written.

The report includes:
- The normalized job requirement summary (must-have and nice-to-have skills)
- Missing skills with suggested target sections
- Weak experience bullets that lack quantified outcomes
- Seniority signals detected in the job description`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if analyzeConfig.OutputFormat == "" {
			analyzeConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(analyzeConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runAnalyze,
}

var analyzeConfig common.CommandConfig

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	fileProcessor := common.NewFileProcessor(logger)
	document, err := fileProcessor.ReadDocument(args[0])
	if err != nil {
		return err
	}
	jobText, err := fileProcessor.ReadJobDescription(args[1])
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		defer func() {
			if err := provider.Close(); err != nil {
				logger.Warn("Failed to close AI provider", "error", err)
			}
		}()
	}

	logger.Info("Starting gap analysis",
		"resume_file", args[0],
		"job_chars", len(jobText),
		"output_format", analyzeConfig.OutputFormat)

	orchestrator := workflow.New(cfg.Pipeline, provider, nil, logger)
	result, err := orchestrator.Analyze(cmd.Context(), workflow.EnhanceInput{
		JobText:  jobText,
		Document: document,
		Filename: filepath.Base(args[0]),
	})
	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}

	outputHandler := common.NewOutputHandler(logger)
	if err := outputHandler.HandleOutput(result, analyzeConfig); err != nil {
		return err
	}

	logger.Info("Gap analysis completed", "gaps", len(result.Gaps))
	return nil
}
