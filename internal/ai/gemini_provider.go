package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"resumeforge/internal/config"
	forgeErrors "resumeforge/internal/errors"
	"resumeforge/internal/types"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	httpClient     *http.Client
	config         *config.OperationAIConfig
	operationType  string
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *forgeErrors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *forgeErrors.Logger) (*GeminiProvider, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, forgeErrors.NewAIError(forgeErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client: client,
		httpClient: &http.Client{
			Timeout: *cfg.Timeout,
		},
		config:         cfg,
		operationType:  operationType,
		circuitBreaker: NewAICircuitBreaker(operationType, cfg, logger),
		modelBreaker:   NewModelCircuitBreaker(operationType, cfg, logger),
		logger:         logger,
	}, nil
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model.DisplayName != "" {
		modelInfo.DisplayName = model.DisplayName
	}
	if model.Version != "" {
		modelInfo.Version = model.Version
	}

	return modelInfo
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= *g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", *g.config.MaxRetries,
				"error", lastErr.Error())

			// Exponential backoff with jitter to prevent thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		if !g.isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", *g.config.MaxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, *g.config.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func (g *GeminiProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		// Timeouts and connection-level failures are both worth retrying
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// executeAIOperation runs an AI call with tracing, circuit breaking,
// retry, local schema validation, and JSON parsing.
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	operationName string,
	userPrompt string,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	responseSchema *gojsonschema.Schema,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("resumeforge.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operationName)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
	)
	span.SetAttributes(spanAttributes...)

	if systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, operationName, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		if errors.Is(err, context.DeadlineExceeded) {
			return output, nil, forgeErrors.NewAIError(forgeErrors.ErrCodeAITimeout, "AI call timed out for "+operationName, err)
		}
		return output, nil, forgeErrors.NewAIError(forgeErrors.ErrCodeAIServiceFailed, "Failed to generate content for "+operationName, err)
	}

	raw := result.Text()
	if responseSchema != nil {
		if err := validateResponse(responseSchema, raw); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("success", false))
			return output, extractTokenUsage(result), forgeErrors.NewAIError(ErrCodeResponseInvalid, "AI response failed schema validation for "+operationName, err)
		}
	}

	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, extractTokenUsage(result), forgeErrors.NewAIError(ErrCodeResponseInvalid, "Failed to parse AI response for "+operationName, err)
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

// ErrCodeResponseInvalid marks a well-transported but malformed model
// response; the caller decides whether a strict retry is warranted.
const ErrCodeResponseInvalid = "AI_RESPONSE_INVALID"

// SummarizeJob implements Provider for job-description summarization
func (g *GeminiProvider) SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *TokenUsage, error) {
	systemPrompt := g.systemPrompt(DefaultSystemPrompts.SummarizeJob)
	if strict {
		systemPrompt += strictAddendum
	}
	userPrompt := fmt.Sprintf(DefaultUserPrompts.SummarizeJob, jobText)

	output, tokenUsage, err := executeAIOperation[types.RequirementSummary](
		g,
		ctx,
		"summarize_job",
		userPrompt,
		systemPrompt,
		g.buildSummarizeSchema(),
		compiledSummarySchema,
		attribute.Int("input.job_length", len(jobText)),
		attribute.Bool("strict", strict),
	)

	if err != nil {
		return types.RequirementSummary{}, tokenUsage, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.must_have_count", len(output.MustHaveSkills)),
			attribute.Int("output.nice_to_have_count", len(output.NiceToHaveSkills)),
			attribute.String("output.seniority", string(output.SeniorityLevel)),
		)
	}

	return output, tokenUsage, nil
}

// ProposeEdit implements Provider for edit phrasing
func (g *GeminiProvider) ProposeEdit(ctx context.Context, input ProposeEditInput) (ProposeEditOutput, *TokenUsage, error) {
	systemPrompt := g.systemPrompt(DefaultSystemPrompts.ProposeEdit)
	userPrompt := fmt.Sprintf(DefaultUserPrompts.ProposeEdit,
		input.Op, input.Subject, input.Seniority, input.SectionTitle, input.EntryTitle, input.ExistingBullet)

	output, tokenUsage, err := executeAIOperation[ProposeEditOutput](
		g,
		ctx,
		"propose_edit",
		userPrompt,
		systemPrompt,
		g.buildProposeSchema(),
		compiledProposeSchema,
		attribute.String("gap.kind", string(input.GapKind)),
		attribute.String("gap.subject", input.Subject),
		attribute.String("op", string(input.Op)),
	)

	if err != nil {
		return ProposeEditOutput{}, tokenUsage, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int("output.text_length", len(output.Text)))
	}

	return output, tokenUsage, nil
}

// systemPrompt returns the configured system prompt or the default.
func (g *GeminiProvider) systemPrompt(fallback string) string {
	if g.config.SystemPrompt != "" {
		return g.config.SystemPrompt
	}
	return fallback
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
	}
	stats["overall_healthy"] = g.circuitBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy()
	return stats
}

// Close implements Provider
func (g *GeminiProvider) Close() error {
	// The genai client has no Close in single-shot usage
	return nil
}

// buildSummarizeSchema creates the generation config for summarize requests
func (g *GeminiProvider) buildSummarizeSchema() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"mustHaveSkills": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"niceToHaveSkills": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"seniorityLevel": {
					Type: genai.TypeString,
					Enum: []string{"junior", "mid", "senior", "staff+"},
				},
				"keywordWeights": {
					Type: genai.TypeObject,
				},
			},
			Required: []string{"mustHaveSkills", "niceToHaveSkills", "seniorityLevel", "keywordWeights"},
		},
	}

	if *g.config.Temperature > 0 {
		config.Temperature = g.config.Temperature
	}

	return config
}

// buildProposeSchema creates the generation config for propose requests
func (g *GeminiProvider) buildProposeSchema() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":      {Type: genai.TypeString},
				"rationale": {Type: genai.TypeString},
			},
			Required: []string{"text", "rationale"},
		},
	}

	if *g.config.Temperature > 0 {
		config.Temperature = g.config.Temperature
	}

	return config
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// extractTokenUsage extracts token usage information from a Gemini response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
