package cli

import (
	"context"
	"fmt"
	"time"

	"resumeforge/internal/observability"
	"resumeforge/internal/server"
	"resumeforge/internal/workflow"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for resume enhancement",
	Long: `Start an HTTP server that runs enhancement workflows over a REST API.

Available endpoints:
- POST /api/v1/enhance: Start an enhancement workflow (async, returns a request ID)
- POST /api/v1/analyze: Analyze a resume against a job description (sync)
- GET /api/v1/status/{request_id}: Workflow status and counts
- GET /api/v1/artifacts/{request_id}: List retained stage artifacts
- GET /api/v1/download/{request_id}/{filename}: Download an artifact or the enhanced document
- DELETE /api/v1/workflows/{request_id}: Cancel a running workflow
- GET /health: Health check endpoint
- GET /api/v1/stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls to enable TLS (overrides config)
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().Bool("tls", false, "Enable TLS (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	// Apply flag overrides on top of the loaded config.
	flags := cmd.Flags()
	if port, _ := flags.GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := flags.GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if flags.Changed("tls") {
		cfg.Server.TLS.Enabled, _ = flags.GetBool("tls")
	}
	if certFile, _ := flags.GetString("cert-file"); certFile != "" {
		cfg.Server.TLS.CertFile = certFile
	}
	if keyFile, _ := flags.GetString("key-file"); keyFile != "" {
		cfg.Server.TLS.KeyFile = keyFile
	}

	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	obs, err := observability.NewManager(cfg.Observability, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Observability shutdown failed", "error", err)
		}
	}()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	provider = obs.InstrumentProvider(provider)
	if provider != nil {
		defer func() {
			if err := provider.Close(); err != nil {
				logger.Warn("Failed to close AI provider", "error", err)
			}
		}()
	}

	orchestrator := workflow.New(cfg.Pipeline, provider, obs, logger)
	return server.NewServer(cfg, Version, orchestrator, provider, obs, logger).Start()
}
