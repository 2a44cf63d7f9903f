package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"resumeforge/internal/ai"
	"resumeforge/internal/types"
)

// InstrumentProvider wraps an AI provider so every call is traced and
// measured: latency, request and error counts, and token usage. A nil
// provider stays nil so degraded-mode detection keeps working.
func (m *Manager) InstrumentProvider(provider ai.Provider) ai.Provider {
	if provider == nil || !m.cfg.Enabled {
		return provider
	}
	return &instrumentedProvider{inner: provider, manager: m}
}

type instrumentedProvider struct {
	inner   ai.Provider
	manager *Manager
}

func (p *instrumentedProvider) SummarizeJob(ctx context.Context, jobText string, strict bool) (types.RequirementSummary, *ai.TokenUsage, error) {
	var summary types.RequirementSummary
	var usage *ai.TokenUsage
	err := p.track(ctx, "summarize_job", func(ctx context.Context) (*ai.TokenUsage, error) {
		var err error
		summary, usage, err = p.inner.SummarizeJob(ctx, jobText, strict)
		return usage, err
	})
	return summary, usage, err
}

func (p *instrumentedProvider) ProposeEdit(ctx context.Context, input ai.ProposeEditInput) (ai.ProposeEditOutput, *ai.TokenUsage, error) {
	var output ai.ProposeEditOutput
	var usage *ai.TokenUsage
	err := p.track(ctx, "propose_edit", func(ctx context.Context) (*ai.TokenUsage, error) {
		var err error
		output, usage, err = p.inner.ProposeEdit(ctx, input)
		return usage, err
	})
	return output, usage, err
}

func (p *instrumentedProvider) GetModelInfo(ctx context.Context) *ai.ModelInfo {
	return p.inner.GetModelInfo(ctx)
}

func (p *instrumentedProvider) Close() error {
	return p.inner.Close()
}

// track runs one AI call inside a span and records its metrics.
func (p *instrumentedProvider) track(ctx context.Context, operation string, fn func(context.Context) (*ai.TokenUsage, error)) error {
	tracer := p.manager.Tracer(p.manager.cfg.ServiceName + ".ai")
	ctx, span := tracer.Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	usage, err := fn(ctx)
	duration := time.Since(start).Seconds()

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	metrics := p.manager.GetMetrics()
	if metrics.AIProcessingTime != nil {
		metrics.AIProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	}
	if metrics.AIRequestCount != nil {
		metrics.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if err != nil && metrics.AIErrorCount != nil {
		metrics.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
		if metrics.AITokenUsage != nil {
			for _, tt := range []struct {
				kind  string
				value int64
			}{
				{"input", usage.InputTokens},
				{"output", usage.OutputTokens},
				{"total", usage.TotalTokens},
			} {
				metrics.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
					attribute.String("operation", operation),
					attribute.String("token_type", tt.kind),
				))
			}
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
	span.SetAttributes(attrs...)

	return err
}
