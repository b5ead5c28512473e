// Package telemetry exports decision metrics and traces over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

const instrumentationName = "github.com/doeshing/riskgate"

// Provider owns the OpenTelemetry providers and the riskgate instruments.
// When telemetry is disabled the instruments come from the global no-op
// meter and every Record call is free.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	decisions       metric.Int64Counter
	violations      metric.Int64Counter
	classifications metric.Int64Counter
	decideDuration  metric.Float64Histogram
}

// New builds the provider described by settings.
func New(ctx context.Context, settings domain.TelemetrySettings, version string) (*Provider, error) {
	if !settings.Enabled {
		p := &Provider{
			tracer: otel.Tracer(instrumentationName),
			meter:  otel.Meter(instrumentationName),
		}
		return p, p.initInstruments()
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(settings.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(settings.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(settings.OTLPEndpoint)}
	if settings.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p := &Provider{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(15*time.Second),
			)),
		),
	}
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	p.tracer = p.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(version))
	p.meter = p.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(version))
	return p, p.initInstruments()
}

// NewWithReader builds a provider whose metrics go to reader. Used for
// in-process inspection.
func NewWithReader(reader sdkmetric.Reader) (*Provider, error) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p := &Provider{
		meterProvider: mp,
		tracer:        otel.Tracer(instrumentationName),
		meter:         mp.Meter(instrumentationName),
	}
	return p, p.initInstruments()
}

func (p *Provider) initInstruments() error {
	var err error
	p.decisions, err = p.meter.Int64Counter("riskgate.decisions",
		metric.WithDescription("Decisions served, by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}
	p.violations, err = p.meter.Int64Counter("riskgate.integrity_violations",
		metric.WithDescription("Descriptors rejected by the integrity check"),
		metric.WithUnit("{descriptor}"),
	)
	if err != nil {
		return err
	}
	p.classifications, err = p.meter.Int64Counter("riskgate.classifications",
		metric.WithDescription("Commands classified, by level"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}
	p.decideDuration, err = p.meter.Float64Histogram("riskgate.decide.duration",
		metric.WithDescription("Time to decide one invocation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1),
	)
	return err
}

// RecordDecision implements ports.Metrics.
func (p *Provider) RecordDecision(ctx context.Context, decision domain.Decision, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("decision", decision.String()))
	p.decisions.Add(ctx, 1, attrs)
	p.decideDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordIntegrityViolation implements ports.Metrics. The command name is
// not an attribute: it is attacker-influenced and unbounded.
func (p *Provider) RecordIntegrityViolation(ctx context.Context, _ string) {
	p.violations.Add(ctx, 1)
}

// RecordClassification implements ports.Metrics.
func (p *Provider) RecordClassification(ctx context.Context, level domain.RiskLevel) {
	p.classifications.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level.String())))
}

// StartSpan starts a span on the riskgate tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutdown trace provider: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown metric provider: %w", err)
		}
	}
	return firstErr
}

var _ ports.Metrics = (*Provider)(nil)
