package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceName = "clientpulse"

// Config holds OTLP exporter settings
type Config struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Insecure bool   `yaml:"insecure" envconfig:"INSECURE"`
}

// Exporter records engine metrics on an OTel meter provider
type Exporter struct {
	provider     *sdkmetric.MeterProvider
	txTotal      metric.Int64Counter
	txAttempts   metric.Int64Histogram
	timersTotal  metric.Int64Counter
	trackedTotal metric.Int64Counter
	driftTotal   metric.Int64Counter
	repairsTotal metric.Int64Counter
}

var _ Recorder = (*Exporter)(nil)

// New returns an OTLP-backed Exporter, or NoOp when telemetry is disabled
func New(ctx context.Context, cfg Config, version string) (Recorder, error) {
	if !cfg.Enabled {
		return NoOp{}, nil
	}
	return NewExporter(ctx, cfg, version)
}

// NewExporter creates an exporter pushing to an OTLP gRPC collector
func NewExporter(ctx context.Context, cfg Config, version string) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure(),
		)
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	var err error
	if e.txTotal, err = meter.Int64Counter(
		"clientpulse_transactions_total",
		metric.WithDescription("Coordinated units of work by operation and outcome"),
		metric.WithUnit("{transaction}"),
	); err != nil {
		return nil, fmt.Errorf("creating transactions counter: %w", err)
	}

	if e.txAttempts, err = meter.Int64Histogram(
		"clientpulse_transaction_attempts",
		metric.WithDescription("Attempts needed per unit of work"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("creating attempts histogram: %w", err)
	}

	if e.timersTotal, err = meter.Int64Counter(
		"clientpulse_timers_stopped_total",
		metric.WithDescription("Timers stopped"),
		metric.WithUnit("{timer}"),
	); err != nil {
		return nil, fmt.Errorf("creating timers counter: %w", err)
	}

	if e.trackedTotal, err = meter.Int64Counter(
		"clientpulse_tracked_seconds_total",
		metric.WithDescription("Seconds tracked by stopped timers"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating tracked seconds counter: %w", err)
	}

	if e.driftTotal, err = meter.Int64Counter(
		"clientpulse_drift_warnings_total",
		metric.WithDescription("Consistency warnings raised by the verifier"),
		metric.WithUnit("{warning}"),
	); err != nil {
		return nil, fmt.Errorf("creating drift counter: %w", err)
	}

	if e.repairsTotal, err = meter.Int64Counter(
		"clientpulse_counter_repairs_total",
		metric.WithDescription("Clients whose counters were rewritten by reconciliation"),
		metric.WithUnit("{client}"),
	); err != nil {
		return nil, fmt.Errorf("creating repairs counter: %w", err)
	}

	return e, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (e *Exporter) TxFinished(ctx context.Context, op string, attempts int, err error) {
	opt := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	)
	e.txTotal.Add(ctx, 1, opt)
	e.txAttempts.Record(ctx, int64(attempts), opt)
}

func (e *Exporter) TimerStopped(ctx context.Context, billable bool, seconds int64) {
	opt := metric.WithAttributes(attribute.Bool("billable", billable))
	e.timersTotal.Add(ctx, 1, opt)
	e.trackedTotal.Add(ctx, seconds, opt)
}

func (e *Exporter) DriftDetected(ctx context.Context, kind string) {
	e.driftTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (e *Exporter) CountersRepaired(ctx context.Context, n int) {
	e.repairsTotal.Add(ctx, int64(n))
}

// Close flushes pending metrics and shuts the provider down
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
