package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
)

// OTelTracer is a metrics.Tracer creating OpenTelemetry spans. Step spans are children
// of the job span carried in the context.
type OTelTracer struct {
	tracer trace.Tracer
}

var _ metrics.Tracer = (*OTelTracer)(nil)

// NewOTelTracer creates an OTelTracer on tracer.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// StartJobSpan starts the span of a job execution. The span status follows the
// execution status when the returned func is called.
func (t *OTelTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+execution.JobName, trace.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("job.execution_id", execution.ID),
		attribute.String("job.instance_id", execution.JobInstanceID),
		attribute.Int("job.restart_count", execution.RestartCount),
	))
	return ctx, func() {
		span.SetAttributes(attribute.String("job.status", execution.Status.String()))
		endWithStatus(span, execution.Status)
	}
}

// StartStepSpan starts the span of a step execution and records its counters when ended.
func (t *OTelTracer) StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+execution.StepName, trace.WithAttributes(
		attribute.String("step.name", execution.StepName),
		attribute.String("step.execution_id", execution.ID),
		attribute.Int("step.restart_offset", execution.RestartOffset),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("step.status", execution.Status.String()),
			attribute.Int("step.read_count", execution.ReadCount),
			attribute.Int("step.write_count", execution.WriteCount),
			attribute.Int("step.filter_count", execution.FilterCount),
			attribute.Int("step.commit_count", execution.CommitCount),
			attribute.Int("step.rollback_count", execution.RollbackCount),
		)
		endWithStatus(span, execution.Status)
	}
}

// RecordError records err on the span in ctx.
func (t *OTelTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent adds an event to the span in ctx.
func (t *OTelTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func endWithStatus(span trace.Span, status model.JobStatus) {
	switch status {
	case model.BatchStatusCompleted:
		span.SetStatus(codes.Ok, "")
	case model.BatchStatusFailed:
		span.SetStatus(codes.Error, status.String())
	}
	span.End()
}

func toAttribute(k string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}
