package metrics

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
)

// OTelRecorder is a metrics.MetricRecorder reporting through an OpenTelemetry Meter.
type OTelRecorder struct {
	jobDuration  metric.Float64Histogram
	stepDuration metric.Float64Histogram
	itemsRead    metric.Int64Counter
	itemsWritten metric.Int64Counter
	itemsFilter  metric.Int64Counter
	commits      metric.Int64Counter
	rollbacks    metric.Int64Counter
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)

// NewOTelRecorder creates the instruments on meter.
func NewOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	var errs *multierror.Error
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = multierror.Append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = multierror.Append(errs, err)
		return c
	}

	r := &OTelRecorder{
		jobDuration:  histogram("batch.job.duration", "Duration of batch job executions."),
		stepDuration: histogram("batch.step.duration", "Duration of batch step executions."),
		itemsRead:    counter("batch.step.items.read", "Items read in committed chunks."),
		itemsWritten: counter("batch.step.items.written", "Items written in committed chunks."),
		itemsFilter:  counter("batch.step.items.filtered", "Items filtered in committed chunks."),
		commits:      counter("batch.step.chunk.commits", "Committed chunks."),
		rollbacks:    counter("batch.step.chunk.rollbacks", "Rolled back chunks."),
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelRecorder) RecordJobStart(context.Context, *model.JobExecution) {}

func (r *OTelRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	if execution.EndTime == nil {
		return
	}
	r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), metric.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	))
}

func (r *OTelRecorder) RecordStepStart(context.Context, *model.StepExecution) {}

func (r *OTelRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	if execution.EndTime == nil {
		return
	}
	r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), metric.WithAttributes(
		attribute.String("job.name", jobNameOf(execution)),
		attribute.String("step.name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	))
}

func (r *OTelRecorder) RecordItemRead(ctx context.Context, stepName string, count int) {
	r.itemsRead.Add(ctx, int64(count), stepAttrs(ctx, stepName))
}

func (r *OTelRecorder) RecordItemFilter(ctx context.Context, stepName string, count int) {
	r.itemsFilter.Add(ctx, int64(count), stepAttrs(ctx, stepName))
}

func (r *OTelRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), stepAttrs(ctx, stepName))
}

func (r *OTelRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.commits.Add(ctx, 1, stepAttrs(ctx, stepName))
}

func (r *OTelRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.rollbacks.Add(ctx, 1, stepAttrs(ctx, stepName))
}

func stepAttrs(ctx context.Context, stepName string) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("job.name", jobNameFromContext(ctx)),
		attribute.String("step.name", stepName),
	)
}
