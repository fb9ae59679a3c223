package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // e.g. "localhost:4317" for gRPC
	SampleRate     float64       // 0.0 to 1.0, default 1.0 (sample all)
	BatchTimeout   time.Duration // how long to wait before sending batched spans
	Enabled        bool
	Insecure       bool // use an insecure connection (dev only)
}

// DefaultConfig returns defaults with telemetry off: the orchestrator is a
// library first, and exporting must be an explicit decision of the embedding
// process.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "conclave",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       false,
	}
}

// Provider manages OpenTelemetry trace and metric providers. All methods are
// safe on a nil *Provider, so callers that were never handed one need no
// guards.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger
	health         *DecisionHealth

	// RED instruments for the decision pipeline.
	decisionCounter metric.Int64Counter
	durationHist    metric.Float64Histogram
	workerFailures  metric.Int64Counter
	activeTasks     metric.Int64UpDownCounter
}

// New creates a provider. With Enabled false no exporters are constructed and
// every instrument degrades to a no-op, but decision health is still tracked
// in-process.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: NewLogger("observability"),
		health: NewDecisionHealth(),
	}

	if !config.Enabled {
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("conclave.orchestrator",
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = otel.Meter("conclave.orchestrator",
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
		"insecure", config.Insecure,
	)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.decisionCounter, err = p.meter.Int64Counter("conclave.decisions.total",
		metric.WithDescription("Total decisions processed, by verdict"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = p.meter.Float64Histogram("conclave.decision.duration",
		metric.WithDescription("End-to-end decision processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return err
	}

	p.workerFailures, err = p.meter.Int64Counter("conclave.worker.failures.total",
		metric.WithDescription("Worker invocations that errored, timed out or panicked"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	p.activeTasks, err = p.meter.Int64UpDownCounter("conclave.tasks.active",
		metric.WithDescription("Tasks currently being processed"),
		metric.WithUnit("{task}"),
	)
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer("conclave.orchestrator")
	}
	return p.tracer
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil || p.meter == nil {
		return otel.Meter("conclave.orchestrator")
	}
	return p.meter
}

// StartSpan starts a span on the provider's tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// Health returns the in-process decision health tracker.
func (p *Provider) Health() *DecisionHealth {
	if p == nil {
		return nil
	}
	return p.health
}

// TrackDecision instruments one pass through the decision pipeline. The
// returned done must be called exactly once with the final verdict; err is
// the degradation error when the pipeline fell back to a synthetic denial.
func (p *Provider) TrackDecision(ctx context.Context, task string) (context.Context, func(verdict string, err error)) {
	if p == nil {
		return ctx, func(string, error) {}
	}

	start := time.Now()
	ctx, span := p.StartSpan(ctx, "conclave.decide",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrTask.String(task)),
	)

	if p.activeTasks != nil {
		p.activeTasks.Add(ctx, 1)
	}

	return ctx, func(verdict string, err error) {
		duration := time.Since(start)
		verdictAttr := metric.WithAttributes(AttrVerdict.String(verdict))

		if p.activeTasks != nil {
			p.activeTasks.Add(ctx, -1)
		}
		if p.decisionCounter != nil {
			p.decisionCounter.Add(ctx, 1, verdictAttr)
		}
		if p.durationHist != nil {
			p.durationHist.Record(ctx, duration.Seconds(), verdictAttr)
		}
		p.health.Record(verdict, duration)

		span.SetAttributes(AttrVerdict.String(verdict))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// RecordWorkerFailure counts one failed worker invocation.
func (p *Provider) RecordWorkerFailure(ctx context.Context, workerID, kind string) {
	if p == nil || p.workerFailures == nil {
		return
	}
	p.workerFailures.Add(ctx, 1, metric.WithAttributes(
		AttrWorkerID.String(workerID),
		AttrWorkerKind.String(kind),
	))
}

// NewLogger returns a slog logger tagged with the component name. All
// packages log through this so output stays uniformly keyed.
func NewLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// NopLogger returns a logger that discards everything, for tests and for
// callers that want silence.
func NopLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
