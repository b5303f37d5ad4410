package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Prometheus metric names, without the orderdesk_ namespace
const (
	MetricSubmissionsTotal          = "submissions_total"
	MetricSubmissionDurationSeconds = "submission_duration_seconds"
	MetricInvoicesRenderedTotal     = "invoices_rendered_total"
)

// MetricsConfig holds OTLP metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider creates a MeterProvider pushing to the collector.
// If metrics are disabled, meters come from the global no-op provider.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// Shutdown flushes pending metrics and stops the provider.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// SubmissionMetrics counts gateway submissions and rendered invoices.
// Every observation goes to a private Prometheus registry, served by
// Handler, and to OpenTelemetry instruments pushed over OTLP.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type SubmissionMetrics struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	invoicesRendered   *prometheus.CounterVec

	otelSubmissions metric.Int64Counter
	otelDuration    metric.Float64Histogram
}

// NewSubmissionMetrics creates the instruments. meter may be nil, in which
// case only the Prometheus side records.
func NewSubmissionMetrics(meter metric.Meter) (*SubmissionMetrics, error) {
	registry := prometheus.NewRegistry()
	m := &SubmissionMetrics{
		registry: registry,
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orderdesk",
				Name:      MetricSubmissionsTotal,
				Help:      "Order submissions handled by the submission gateway",
			},
			[]string{"direction", "mode", "outcome"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "orderdesk",
				Name:      MetricSubmissionDurationSeconds,
				Help:      "Time spent persisting one order, simulated latency included",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"direction", "mode"},
		),
		invoicesRendered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orderdesk",
				Name:      MetricInvoicesRenderedTotal,
				Help:      "Invoice documents rendered, by output format",
			},
			[]string{"format"},
		),
	}

	registry.MustRegister(
		m.submissionsTotal,
		m.submissionDuration,
		m.invoicesRendered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if meter != nil {
		var err error
		m.otelSubmissions, err = meter.Int64Counter("orderdesk.submissions",
			metric.WithDescription("Order submissions handled by the submission gateway"),
			metric.WithUnit("{submission}"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create submissions counter: %w", err)
		}
		m.otelDuration, err = meter.Float64Histogram("orderdesk.submission.duration",
			metric.WithDescription("Time spent persisting one order"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create submission duration histogram: %w", err)
		}
	}
	return m, nil
}

// ObserveSubmission records one gateway submission
func (m *SubmissionMetrics) ObserveSubmission(direction, mode, outcome string, elapsed time.Duration) {
	m.submissionsTotal.WithLabelValues(direction, mode, outcome).Inc()
	m.submissionDuration.WithLabelValues(direction, mode).Observe(elapsed.Seconds())

	if m.otelSubmissions != nil {
		attrs := metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("mode", mode),
			attribute.String("outcome", outcome),
		)
		m.otelSubmissions.Add(context.Background(), 1, attrs)
		m.otelDuration.Record(context.Background(), elapsed.Seconds(), attrs)
	}
}

// ObserveInvoice records one rendered invoice document
func (m *SubmissionMetrics) ObserveInvoice(format string) {
	m.invoicesRendered.WithLabelValues(format).Inc()
}

// Registry exposes the Prometheus registry, mainly for tests
func (m *SubmissionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *SubmissionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
