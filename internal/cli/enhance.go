package cli

import (
	"fmt"
	"path/filepath"

	"resumeforge/internal/common"
	"resumeforge/internal/utils"
	"resumeforge/internal/workflow"

	"github.com/spf13/cobra"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance [resume-file] [job-description-file]",
	Short: "Enhance a resume for a specific job description",
	Long: `Run the full enhancement pipeline against a resume and a job
description. The resume can be plain text, markdown, or docx; the job
description should be plain text. The pipeline summarizes the job,
structures the resume, finds gaps, plans constrained edits, applies
them while preserving the document format, and verifies the result.

The enhanced document is written next to the pipeline's work directory;
the command output reports the verification result and where to find
the document.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if enhanceConfig.OutputFormat == "" {
			enhanceConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(enhanceConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runEnhance,
}

var enhanceConfig common.CommandConfig

func init() {
	enhanceCmd.Flags().StringVarP(&enhanceConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	enhanceCmd.Flags().StringVar(&enhanceConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = enhanceCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runEnhance(cmd *cobra.Command, args []string) error {
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

	logger.Info("Starting resume enhancement",
		"resume_file", args[0],
		"resume_size", utils.FormatFileSize(int64(len(document))),
		"job_chars", len(jobText),
		"output_format", enhanceConfig.OutputFormat)

	orchestrator := workflow.New(cfg.Pipeline, provider, nil, logger)
	result, err := orchestrator.Enhance(cmd.Context(), workflow.EnhanceInput{
		JobText:  jobText,
		Document: document,
		Filename: filepath.Base(args[0]),
	})
	if err != nil {
		return fmt.Errorf("failed to enhance resume: %w", err)
	}

	outputHandler := common.NewOutputHandler(logger)
	if err := outputHandler.HandleOutput(result, enhanceConfig); err != nil {
		return err
	}

	logger.Info("Resume enhancement completed",
		"request_id", result.Record.RequestID,
		"verification_passed", result.Report.Passed,
		"document", result.OutputPath)
	return nil
}
