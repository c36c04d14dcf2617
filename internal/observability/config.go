// Package observability instruments statement execution with OpenTelemetry
// traces and metrics and with Server-Timing entries.
package observability

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is reported when no service name is configured.
	DefaultServiceName = "sqlmodel"

	instrumentationName = "github.com/nlstn/go-sqlmodel"
)

// Config holds the observability configuration. Build it with NewConfig and
// call Initialize before use.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         atomic.Pointer[slog.Logger]
	serverTiming   bool

	tracer  *Tracer
	metrics *Metrics
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider sets the tracer provider. Nil keeps the no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Nil keeps the no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithServiceName sets the service name attribute.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version attribute.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used for slow or failed statements.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger.Store(logger)
		}
	}
}

// WithServerTiming records a Server-Timing metric per statement when the
// context carries a timing header.
func WithServerTiming() Option {
	return func(c *Config) { c.serverTiming = true }
}

// NewConfig returns a Config with no-op providers overridden by opts.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		serviceName:    DefaultServiceName,
	}
	c.logger.Store(slog.Default())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates the tracer and the metric instruments.
func (c *Config) Initialize() error {
	c.tracer = newTracer(c.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion)), c.serviceName)

	metrics, err := newMetrics(c.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(c.serviceVersion)))
	if err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}
	c.metrics = metrics
	return nil
}

// Tracer returns the statement tracer. Initialize must have been called.
func (c *Config) Tracer() *Tracer {
	return c.tracer
}

// Metrics returns the statement metrics. Initialize must have been called.
func (c *Config) Metrics() *Metrics {
	return c.metrics
}

// Logger returns the configured logger.
func (c *Config) Logger() *slog.Logger {
	return c.logger.Load()
}

// SetLogger replaces the logger. It is safe to call while statements run.
// A nil logger is ignored.
func (c *Config) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger.Store(logger)
	}
}

// ServerTimingEnabled reports whether Server-Timing metrics are recorded.
func (c *Config) ServerTimingEnabled() bool {
	return c.serverTiming
}

// ServiceName returns the configured service name.
func (c *Config) ServiceName() string {
	return c.serviceName
}
