// Package observability wires OpenTelemetry tracing and metrics for the
// enhancement pipeline: per-stage durations, workflow outcomes, AI call
// latency and token usage, and the HTTP middleware.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"resumeforge/internal/config"
)

// Metrics holds the custom instruments.
type Metrics struct {
	// Pipeline metrics
	StageDuration  metric.Float64Histogram
	WorkflowsTotal metric.Int64Counter
	StageRetries   metric.Int64Counter

	// AI call metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Infrastructure metrics
	RateLimitHits  metric.Int64Counter
	CertExpiryTime metric.Float64Gauge
}

// Manager owns the OpenTelemetry providers and the custom instruments.
// It implements workflow.StageRecorder so the orchestrator can report
// stage and workflow outcomes without importing this package's types.
type Manager struct {
	cfg            config.ObservabilityConfig
	version        string
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// NewManager sets up tracing and metrics per configuration. A disabled
// configuration yields a manager whose methods are no-ops.
func NewManager(cfg config.ObservabilityConfig, version string) (*Manager, error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = version
	}

	m := &Manager{cfg: cfg, version: version}
	if !cfg.Enabled {
		return m, nil
	}

	res, err := m.buildResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := m.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := m.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

func (m *Manager) buildResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.cfg.ServiceName),
			semconv.ServiceVersion(m.cfg.ServiceVersion),
			attribute.String("service.instance.id", m.cfg.ServiceInstance),
		),
	)
}

func (m *Manager) initTracing(res *resource.Resource) error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case m.cfg.Console.Enabled:
		opts := []stdouttrace.Option{}
		if m.cfg.Console.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case m.cfg.OTLP.Enabled:
		exporter, err = m.createOTLPTraceExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	sampleRate := m.cfg.SampleRate
	if m.cfg.Tracing.SampleRate > 0 {
		sampleRate = m.cfg.Tracing.SampleRate
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(sampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) initMetrics(res *resource.Resource) error {
	readers, err := m.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	return m.initInstruments()
}

func (m *Manager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if m.cfg.Console.Enabled {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers,
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(m.collectionInterval())))
	}

	if m.cfg.OTLP.Enabled {
		reader, err := m.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if m.cfg.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(m.cfg.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		if reader != nil {
			readers = append(readers, reader)
			if err := StartPrometheusServer(mux, m.cfg.Prometheus.Port); err != nil {
				return nil, fmt.Errorf("failed to start Prometheus server: %w", err)
			}
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

func (m *Manager) initInstruments() error {
	meter := m.meterProvider.Meter(m.cfg.ServiceName)
	m.metrics = &Metrics{}
	var err error

	m.metrics.StageDuration, err = meter.Float64Histogram(
		"resumeforge_stage_duration_seconds",
		metric.WithDescription("Time spent in each workflow stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage duration metric: %w", err)
	}

	m.metrics.WorkflowsTotal, err = meter.Int64Counter(
		"resumeforge_workflows_total",
		metric.WithDescription("Total number of finished workflows by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow counter: %w", err)
	}

	m.metrics.StageRetries, err = meter.Int64Counter(
		"resumeforge_stage_retries_total",
		metric.WithDescription("Total number of retried stage attempts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage retry counter: %w", err)
	}

	m.metrics.AIProcessingTime, err = meter.Float64Histogram(
		"resumeforge_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.metrics.AIRequestCount, err = meter.Int64Counter(
		"resumeforge_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.metrics.AIErrorCount, err = meter.Int64Counter(
		"resumeforge_ai_errors_total",
		metric.WithDescription("Total number of AI request errors"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.metrics.AITokenUsage, err = meter.Int64Histogram(
		"resumeforge_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.metrics.RateLimitHits, err = meter.Int64Counter(
		"resumeforge_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.metrics.CertExpiryTime, err = meter.Float64Gauge(
		"resumeforge_cert_expiry_seconds",
		metric.WithDescription("Seconds until certificate expiry"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate expiry metric: %w", err)
	}

	return nil
}

// GetMetrics returns the instrument set, empty when disabled.
func (m *Manager) GetMetrics() *Metrics {
	if m.metrics == nil {
		return &Metrics{}
	}
	return m.metrics
}

// RecordStage records one workflow stage attempt.
func (m *Manager) RecordStage(ctx context.Context, stage string, duration time.Duration, success bool) {
	if m.metrics == nil || m.metrics.StageDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	)
	m.metrics.StageDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordWorkflow records a finished workflow's outcome.
func (m *Manager) RecordWorkflow(ctx context.Context, outcome string) {
	if m.metrics == nil || m.metrics.WorkflowsTotal == nil {
		return
	}
	m.metrics.WorkflowsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimitHit records a rejected request.
func (m *Manager) RecordRateLimitHit(ctx context.Context, endpoint string) {
	if m.metrics == nil || m.metrics.RateLimitHits == nil {
		return
	}
	m.metrics.RateLimitHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordCertExpiry records seconds until certificate expiry.
func (m *Manager) RecordCertExpiry(ctx context.Context, timeToExpiry time.Duration) {
	if m.metrics == nil || m.metrics.CertExpiryTime == nil {
		return
	}
	m.metrics.CertExpiryTime.Record(ctx, timeToExpiry.Seconds())
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry
// instrumentation, or a pass-through when disabled.
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !m.cfg.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}
	return otelhttp.NewMiddleware(
		m.cfg.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
	)
}

// Tracer returns a tracer for the service.
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if !m.cfg.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown flushes and stops all providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) collectionInterval() time.Duration {
	if m.cfg.Metrics.CollectionInterval > 0 {
		return m.cfg.Metrics.CollectionInterval
	}
	return 15 * time.Second
}

type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

func (m *Manager) createOTLPTraceExporter() (trace.SpanExporter, error) {
	otlp := m.cfg.OTLP
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlp.Endpoint),
	}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}
	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

func (m *Manager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlp := m.cfg.OTLP
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlp.Endpoint),
	}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}
	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(m.collectionInterval())), nil
}
