package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer and meter.
const InstrumentationName = "github.com/roach88/kompass"

// ErrNilContext is returned by Setup when called with a nil context.
var ErrNilContext = errors.New("telemetry: nil context")

// Config selects where telemetry goes. Empty paths disable the signal.
type Config struct {
	ServiceVersion string

	// TraceFile receives spans as pretty-printed JSON.
	TraceFile string

	// MetricsFile receives a Prometheus text exposition on Shutdown.
	MetricsFile string
}

// Telemetry holds the tracer and metrics handed to the core.
type Telemetry struct {
	Tracer  trace.Tracer
	Metrics *Metrics

	registry    *prometheus.Registry
	metricsFile string
	shutdown    []func(context.Context) error
}

// Noop returns telemetry that records nothing.
func Noop() *Telemetry {
	m, _ := NewMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
	return &Telemetry{
		Tracer:  tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Metrics: m,
	}
}

// Setup builds providers for the configured sinks. Providers are not
// installed globally; callers pass Tracer and Metrics down explicitly.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	t := Noop()
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "kompass"),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		t.Tracer = tp.Tracer(InstrumentationName)
		t.shutdown = append(t.shutdown, tp.Shutdown, func(context.Context) error { return f.Close() })
	}

	if cfg.MetricsFile != "" {
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		m, err := NewMetrics(mp.Meter(InstrumentationName))
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.Metrics = m
		t.registry = registry
		t.metricsFile = cfg.MetricsFile
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}

	return t, nil
}

// Shutdown writes the metrics textfile, then flushes and closes every sink.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.registry != nil && t.metricsFile != "" {
		if err := prometheus.WriteToTextfile(t.metricsFile, t.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		}
	}
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	t.registry = nil
	return errors.Join(errs...)
}
