package instrumentation

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Label values and exporter names shared by the recorders and the provider.
const (
	DefaultServiceName = "inboxrelay"

	StatusSuccess = "success"
	StatusError   = "error"

	ServiceGmail  = "gmail"
	ServiceGemini = "gemini"

	PollErrorConflict  = "conflict"
	PollErrorTransient = "transient"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the push interval of the otlp and stdout
	// metric exporters. Prometheus is pull based and ignores it.
	DefaultMetricInterval = 10 * time.Second
)

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Config selects where the relay's telemetry goes.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID identifies this relay process. Empty means hostname.
	ServiceInstanceID string

	// Enabled turns the whole provider on. A disabled provider hands out
	// no-op recorders and tracers.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme, e.g. localhost:4318.
	OTLPEndpoint string
	OTLPInsecure bool

	// TraceSamplingRate is the parent based ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// MetricInterval overrides DefaultMetricInterval for push exporters.
	MetricInterval time.Duration

	Audit AuditConfig
}

// AuditConfig controls the approval decision audit log.
type AuditConfig struct {
	Enabled bool

	// IncludePII logs the approver's chat username verbatim instead of a hash.
	IncludePII bool
}

// DefaultConfig returns the relay's telemetry defaults: Prometheus metrics,
// no tracing, audit log on without PII.
func DefaultConfig() Config {
	return Config{
		ServiceName:       DefaultServiceName,
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		MetricInterval:    DefaultMetricInterval,
		Audit:             AuditConfig{Enabled: true},
	}
}

// Validate reports every problem with the configuration at once.
// Empty exporter names are accepted and mean the default.
func (c *Config) Validate() error {
	var errs []error
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate))
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: %v", c.MetricsExporter, metricsExporters))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: %v", c.TracingExporter, tracingExporters))
	}
	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		errs = append(errs, errors.New("OTLP endpoint is required when an otlp exporter is selected"))
	}
	if c.MetricInterval < 0 {
		errs = append(errs, fmt.Errorf("metric interval must not be negative, got %s", c.MetricInterval))
	}
	return errors.Join(errs...)
}

func (c *Config) metricInterval() time.Duration {
	if c.MetricInterval <= 0 {
		return DefaultMetricInterval
	}
	return c.MetricInterval
}
