// Package server exposes the enhancement workflow over HTTP: async
// enhance, synchronous analyze, workflow status and artifact retrieval,
// plus health and stats. Middleware covers API-key auth, per-client
// rate limiting, request size limits, and OpenTelemetry instrumentation.
package server

import (
	"resumeforge/internal/ai"
	"resumeforge/internal/config"
	"resumeforge/internal/errors"
	"resumeforge/internal/observability"
	"resumeforge/internal/workflow"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EnhanceAccepted is the 202 body for an accepted enhancement request.
type EnhanceAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// Server holds the HTTP layer's collaborators.
type Server struct {
	Config  *config.Config
	Version string

	Orchestrator *workflow.Orchestrator
	Provider     ai.Provider

	// API authentication; empty map disables auth.
	APIKeys map[string]bool

	RateLimiter *LimiterManager
	CertManager *CertManager

	Observability *observability.Manager
	Logger        *errors.Logger
}

// NewServer wires the HTTP server from configuration. provider may be
// nil; the pipeline then runs its deterministic fallbacks and /health
// reports the AI model as unavailable.
func NewServer(cfg *config.Config, version string, orchestrator *workflow.Orchestrator, provider ai.Provider, obs *observability.Manager, logger *errors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.Server.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var limiter *LimiterManager
	if cfg.Server.RateLimit.Enabled {
		limiter = NewLimiterManager(
			cfg.Server.RateLimit.RequestsPerMin,
			cfg.Server.RateLimit.BurstCapacity,
			cfg.Server.RateLimit.CleanupAfter,
			logger,
		)
	}

	return &Server{
		Config:        cfg,
		Version:       version,
		Orchestrator:  orchestrator,
		Provider:      provider,
		APIKeys:       apiKeyMap,
		RateLimiter:   limiter,
		Observability: obs,
		Logger:        logger,
	}
}
