package cli

import (
	"context"
	"fmt"

	"resumeforge/internal/ai"
	"resumeforge/internal/config"
	"resumeforge/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "resumeforge",
	Short: "A tool for enhancing resumes against job descriptions using AI",
	Long: `Resumeforge analyzes a resume against a job description, finds gaps
between what the job asks for and what the resume shows, and applies
constrained, format-preserving edits to close them. It runs as a CLI or
as an HTTP server.`,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// buildProvider creates the AI provider the pipeline uses, routing
// summarization and edit proposal to their per-operation configs. A
// missing API key returns a nil provider: the pipeline then runs in
// degraded deterministic mode instead of failing at startup.
func buildProvider(cfg *config.Config, logger *errors.Logger) (ai.Provider, error) {
	summarizeCfg := cfg.GetSummarizeConfig()
	proposeCfg := cfg.GetProposeConfig()

	if summarizeCfg.APIKey == "" && proposeCfg.APIKey == "" {
		logger.Warn("No AI API key configured, running in degraded deterministic mode")
		return nil, nil
	}

	summarizeSvc, err := ai.NewService(&summarizeCfg, "summarize", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarize AI service: %w", err)
	}
	proposeSvc, err := ai.NewService(&proposeCfg, "propose", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create propose AI service: %w", err)
	}

	return ai.NewRoutedProvider(summarizeSvc.Provider, proposeSvc.Provider), nil
}

func init() {
	rootCmd.AddCommand(enhanceCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
