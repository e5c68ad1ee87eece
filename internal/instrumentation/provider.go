package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the relay's meter and tracer providers.
type Provider struct {
	config     Config
	meters     *metric.MeterProvider
	tracers    *sdktrace.TracerProvider
	metrics    *Metrics
	prometheus bool
}

// NewProvider builds the providers selected by config and installs them as the
// otel globals. A disabled config yields a provider whose recorders are no-ops.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if !config.Enabled {
		return &Provider{config: config, metrics: &Metrics{}}, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(config)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader, err := newMetricReader(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}
	_, isProm := reader.(*prometheus.Exporter)

	p := &Provider{
		config:     config,
		meters:     metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)),
		prometheus: isProm,
	}

	p.tracers, err = newTracerProvider(ctx, config, res)
	if err != nil {
		if shutdownErr := p.meters.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to shutdown meter provider during cleanup: %w", shutdownErr))
		}
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	otel.SetMeterProvider(p.meters)
	otel.SetTracerProvider(p.tracers)

	p.metrics, err = NewMetrics(p.meters.Meter(config.ServiceName))
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}
	return p, nil
}

func resourceAttributes(config Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	}
	instance := config.ServiceInstanceID
	if instance == "" {
		instance, _ = os.Hostname()
	}
	if instance != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instance))
	}
	return attrs
}

func newMetricReader(ctx context.Context, config Config) (metric.Reader, error) {
	var exporter metric.Exporter
	switch config.MetricsExporter {
	case ExporterPrometheus, "":
		r, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return r, nil

	case ExporterOTLP:
		if config.OTLPEndpoint == "" {
			return nil, errors.New("OTLP endpoint is required for the otlp metrics exporter")
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.OTLPEndpoint)}
		if config.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		e, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		exporter = e

	case ExporterStdout:
		warnDevExporter("metrics")
		e, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		exporter = e

	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", config.MetricsExporter)
	}
	return metric.NewPeriodicReader(exporter, metric.WithInterval(config.metricInterval())), nil
}

func newTracerProvider(ctx context.Context, config Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	switch config.TracingExporter {
	case ExporterNone, "":
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		), nil

	case ExporterOTLP:
		if config.OTLPEndpoint == "" {
			return nil, errors.New("OTLP endpoint is required for the otlp tracing exporter")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
		if config.OTLPInsecure {
			// Spans carry message ids and approval ids.
			slog.Warn("OTLP insecure transport enabled, use only for development",
				"component", "instrumentation",
				"endpoint", config.OTLPEndpoint,
			)
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		e, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		exporter = e

	case ExporterStdout:
		warnDevExporter("traces")
		e, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		exporter = e

	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", config.TracingExporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.TraceSamplingRate))),
	), nil
}

func warnDevExporter(signal string) {
	slog.Warn("stdout "+signal+" exporter enabled, for development only",
		"component", "instrumentation",
		"exporter", ExporterStdout,
	)
}

// Metrics returns the recorder. It is never nil.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Tracer returns a named tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tracers == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tracers.Tracer(name)
}

// ServesPrometheus reports whether metrics are exposed through the default
// Prometheus registry, which the metrics server scrapes.
func (p *Provider) ServesPrometheus() bool {
	return p.prometheus
}

// Audit returns a decision audit logger configured from the provider config.
func (p *Provider) Audit(logger *slog.Logger) *AuditLogger {
	return NewAuditLogger(logger, p.config.Audit)
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meters != nil {
		if err := p.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if p.tracers != nil {
		if err := p.tracers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether telemetry is being exported.
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
