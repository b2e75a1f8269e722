package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// Exporter names accepted in the metrics and tracing configuration.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLPHTTP   = "otlp-http"
	ExporterOTLPGRPC   = "otlp-grpc"
)

func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "chunkbatch"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// NewTracerProvider creates an SDK tracer provider exporting over OTLP as configured.
// Exporter "none" yields a provider that records spans but exports nothing.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(cfg.ServiceName))}

	switch cfg.Exporter {
	case ExporterNone, "":
	case ExporterOTLPHTTP:
		var httpOpts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, exception.NewBatchError("tracing", "failed to create OTLP/HTTP trace exporter", err, false, false)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	case ExporterOTLPGRPC:
		var grpcOpts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, exception.NewBatchError("tracing", "failed to create OTLP/gRPC trace exporter", err, false, false)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, exception.NewBatchErrorf("tracing", "unsupported trace exporter %q", cfg.Exporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// NewMeterProvider creates an SDK meter provider pushing over OTLP every
// cfg.IntervalSeconds.
func NewMeterProvider(ctx context.Context, cfg config.MetricsConfig, serviceName string) (*sdkmetric.MeterProvider, error) {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	var exporter sdkmetric.Exporter
	switch cfg.Exporter {
	case ExporterOTLPHTTP:
		var httpOpts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			httpOpts = append(httpOpts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, exception.NewBatchError("metrics", "failed to create OTLP/HTTP metric exporter", err, false, false)
		}
		exporter = exp
	case ExporterOTLPGRPC:
		var grpcOpts []otlpmetricgrpc.Option
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, exception.NewBatchError("metrics", "failed to create OTLP/gRPC metric exporter", err, false, false)
		}
		exporter = exp
	default:
		return nil, exception.NewBatchErrorf("metrics", "exporter %q is not an OTLP exporter", cfg.Exporter)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(serviceName)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}
