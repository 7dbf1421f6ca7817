package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Global telemetry handles.
var (
	Tracer = otel.Tracer("github.com/yairfalse/tagvet")
	Meter  = otel.Meter("github.com/yairfalse/tagvet")

	// PrometheusRegistry backs the /metrics endpoint; the OTEL
	// prometheus exporter registers itself here (dual export pattern).
	PrometheusRegistry *promclient.Registry

	// Instruments, following OTEL naming conventions.
	ToolInvocations    metric.Int64Counter
	ToolRejections     metric.Int64Counter
	ScanDuration       metric.Float64Histogram
	ViolationsFound    metric.Int64Counter
	PartitionsFailed   metric.Int64Counter
	ProviderRetries    metric.Int64Counter
	BudgetRejections   metric.Int64Counter
	LoopRejections     metric.Int64Counter
	AuditRecordsStored metric.Int64Counter
)

// Instruments are usable before InitOTEL (backed by the no-op global
// meter) so library code never has to nil-check them.
func init() {
	_ = initInstruments()
}

// Config for OTEL initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTELEndpoint   string
	Insecure       bool
}

// InitOTEL initializes OpenTelemetry with traces and metrics.
func InitOTEL(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	cfg = applyConfigDefaults(cfg)

	res, err := createOTELResource(cfg)
	if err != nil {
		return nil, err
	}

	return setupProviders(ctx, cfg, res)
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tagvet"
	}
	return cfg
}

func createOTELResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func setupProviders(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	traceShutdown, err := setupTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to setup traces: %w", err)
	}

	metricShutdown, err := setupMetricProvider(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := initInstruments(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown failed: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown failed: %w", e)
		}
		return err
	}, nil
}

func setupTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		// No collector configured: keep the default no-op provider.
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer("github.com/yairfalse/tagvet")

	return provider.Shutdown, nil
}

// setupMetricProvider configures dual export: Prometheus for pull-based
// scraping plus OTLP push when an endpoint is configured.
func setupMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	var readers []sdkmetric.Reader

	registry := promclient.NewRegistry()
	PrometheusRegistry = registry

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	readers = append(readers, prometheusExporter)

	if cfg.OTELEndpoint != "" {
		otlpReader, err := createOTLPReader(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric reader: %w", err)
		}
		readers = append(readers, otlpReader)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter("github.com/yairfalse/tagvet")

	return provider.Shutdown, nil
}

func createOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(15*time.Second),
	), nil
}

func initInstruments() error {
	var err error

	if ToolInvocations, err = Meter.Int64Counter("tagvet.tool.invocations",
		metric.WithDescription("Tool invocations by tool name and status")); err != nil {
		return err
	}
	if ToolRejections, err = Meter.Int64Counter("tagvet.tool.rejections",
		metric.WithDescription("Calls rejected by the control plane, by fault kind")); err != nil {
		return err
	}
	if ScanDuration, err = Meter.Float64Histogram("tagvet.scan.duration",
		metric.WithDescription("Wall-clock scan duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if ViolationsFound, err = Meter.Int64Counter("tagvet.compliance.violations",
		metric.WithDescription("Violations found, by kind")); err != nil {
		return err
	}
	if PartitionsFailed, err = Meter.Int64Counter("tagvet.scan.partitions_failed",
		metric.WithDescription("Scan partitions that exhausted retries")); err != nil {
		return err
	}
	if ProviderRetries, err = Meter.Int64Counter("tagvet.provider.retries",
		metric.WithDescription("Retries against the resource provider")); err != nil {
		return err
	}
	if BudgetRejections, err = Meter.Int64Counter("tagvet.session.budget_rejections",
		metric.WithDescription("Calls rejected by the session budget")); err != nil {
		return err
	}
	if LoopRejections, err = Meter.Int64Counter("tagvet.session.loop_rejections",
		metric.WithDescription("Calls rejected by the loop detector")); err != nil {
		return err
	}
	if AuditRecordsStored, err = Meter.Int64Counter("tagvet.audit.records",
		metric.WithDescription("Audit records appended")); err != nil {
		return err
	}
	return nil
}
