package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const instrumentationName = "github.com/tigerroll/chunkbatch"

// NewMetricRecorder returns the recorder selected by chunkbatch.metrics.exporter,
// registering the shutdown of whatever it starts on lc.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config) (metrics.MetricRecorder, error) {
	mc := cfg.Chunkbatch.Metrics

	var recorder metrics.MetricRecorder
	switch mc.Exporter {
	case ExporterNone, "":
		return metrics.NewNoOpMetricRecorder(), nil
	case ExporterPrometheus:
		prom := NewPrometheusRecorder()
		if mc.Endpoint != "" {
			serveScrapeEndpoint(lc, mc.Endpoint, prom.Handler())
		}
		recorder = prom
	case ExporterOTLPHTTP, ExporterOTLPGRPC:
		mp, err := NewMeterProvider(context.Background(), mc, cfg.Chunkbatch.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: mp.Shutdown})
		otelRecorder, err := NewOTelRecorder(mp.Meter(instrumentationName))
		if err != nil {
			return nil, err
		}
		recorder = otelRecorder
	default:
		return nil, errors.New("unsupported metrics exporter: " + mc.Exporter)
	}
	logger.Infof("Metrics: using %s exporter.", mc.Exporter)

	if !mc.Async {
		return recorder, nil
	}
	async := NewAsyncMetricRecorder(cfg.Chunkbatch.Batch.MetricsAsyncBufferSize, recorder)
	// Appended after the exporter hooks, so it drains before they shut down.
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		async.Close()
		return nil
	}})
	return async, nil
}

func serveScrapeEndpoint(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Infof("Metrics: serving Prometheus scrape endpoint on %s/metrics.", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics: scrape endpoint stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

// NewTracer returns the tracer selected by chunkbatch.tracing.exporter. The SDK
// provider is also installed as the global otel provider.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tc := cfg.Chunkbatch.Tracing
	if tc.Exporter == ExporterNone || tc.Exporter == "" {
		return metrics.NewNoOpTracer(), nil
	}
	tp, err := NewTracerProvider(context.Background(), tc)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	logger.Infof("Tracing: exporting spans via %s.", tc.Exporter)
	return NewOTelTracer(tp.Tracer(instrumentationName)), nil
}

// Module provides the MetricRecorder and Tracer chosen by configuration. It replaces
// the no-op core metrics module.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
