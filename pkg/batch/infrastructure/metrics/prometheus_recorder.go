// Package metrics provides the concrete MetricRecorder and Tracer implementations:
// Prometheus and OpenTelemetry recorders, an OpenTelemetry tracer, and the exporter
// setup selected by configuration.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const unknownJob = "unknown"

// PrometheusRecorder is a metrics.MetricRecorder backed by a private Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepReadCount       *prometheus.CounterVec
	stepWriteCount      *prometheus.CounterVec
	stepFilterCount     *prometheus.CounterVec
	stepCommitCount     *prometheus.CounterVec
	stepRollbackCount   *prometheus.CounterVec
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a PrometheusRecorder with Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stepCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{"job_name", "step_name"})
	}

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Finished batch job executions by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Finished batch step executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		stepReadCount:     stepCounter("batch_step_read_total", "Items read in committed chunks."),
		stepWriteCount:    stepCounter("batch_step_write_total", "Items written in committed chunks."),
		stepFilterCount:   stepCounter("batch_step_filter_total", "Items filtered in committed chunks."),
		stepCommitCount:   stepCounter("batch_step_commit_total", "Committed chunks."),
		stepRollbackCount: stepCounter("batch_step_rollback_total", "Rolled back chunks."),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepReadCount,
		r.stepWriteCount,
		r.stepFilterCount,
		r.stepCommitCount,
		r.stepRollbackCount,
	)
	return r
}

// Registry returns the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the scrape handler for the registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordJobStart is a no-op; jobs are counted when they end.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd counts the job by final status and observes its duration.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	status := execution.Status.String()
	r.jobStatusCounter.WithLabelValues(execution.JobName, status).Inc()
	if execution.EndTime != nil {
		r.jobDurationSeconds.WithLabelValues(execution.JobName, status).
			Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
	}
}

// RecordStepStart is a no-op; steps are counted when they end.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {}

// RecordStepEnd counts the step by final status and observes its duration.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := jobNameOf(execution)
	status := execution.Status.String()
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, status).Inc()
	if execution.EndTime != nil {
		r.stepDurationSeconds.WithLabelValues(jobName, execution.StepName, status).
			Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
	}
}

func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string, count int) {
	r.stepReadCount.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemFilter(ctx context.Context, stepName string, count int) {
	r.stepFilterCount.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.stepWriteCount.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.stepCommitCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.stepRollbackCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

func jobNameOf(se *model.StepExecution) string {
	if se == nil || se.JobExecution == nil {
		return unknownJob
	}
	return se.JobExecution.JobName
}

func jobNameFromContext(ctx context.Context) string {
	se, _ := port.StepExecutionFromContext(ctx)
	return jobNameOf(se)
}
