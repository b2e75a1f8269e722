package metrics

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards all measurements.
type NoOpMetricRecorder struct{}

func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(context.Context, *model.JobExecution) {}
func (r *NoOpMetricRecorder) RecordJobEnd(context.Context, *model.JobExecution) {}
func (r *NoOpMetricRecorder) RecordStepStart(context.Context, *model.StepExecution) {}
func (r *NoOpMetricRecorder) RecordStepEnd(context.Context, *model.StepExecution) {}
func (r *NoOpMetricRecorder) RecordItemRead(context.Context, string, int) {}
func (r *NoOpMetricRecorder) RecordItemFilter(context.Context, string, int) {}
func (r *NoOpMetricRecorder) RecordItemWrite(context.Context, string, int) {}
func (r *NoOpMetricRecorder) RecordChunkCommit(context.Context, string) {}
func (r *NoOpMetricRecorder) RecordChunkRollback(context.Context, string) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer creates no spans.
type NoOpTracer struct{}

func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartJobSpan(ctx context.Context, _ *model.JobExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStepSpan(ctx context.Context, _ *model.StepExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error) {}
func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)

// MultiMetricRecorder fans measurements out to several recorders.
type MultiMetricRecorder []MetricRecorder

func (m MultiMetricRecorder) RecordJobStart(ctx context.Context, e *model.JobExecution) {
	for _, r := range m {
		r.RecordJobStart(ctx, e)
	}
}
func (m MultiMetricRecorder) RecordJobEnd(ctx context.Context, e *model.JobExecution) {
	for _, r := range m {
		r.RecordJobEnd(ctx, e)
	}
}
func (m MultiMetricRecorder) RecordStepStart(ctx context.Context, e *model.StepExecution) {
	for _, r := range m {
		r.RecordStepStart(ctx, e)
	}
}
func (m MultiMetricRecorder) RecordStepEnd(ctx context.Context, e *model.StepExecution) {
	for _, r := range m {
		r.RecordStepEnd(ctx, e)
	}
}
func (m MultiMetricRecorder) RecordItemRead(ctx context.Context, step string, n int) {
	for _, r := range m {
		r.RecordItemRead(ctx, step, n)
	}
}
func (m MultiMetricRecorder) RecordItemFilter(ctx context.Context, step string, n int) {
	for _, r := range m {
		r.RecordItemFilter(ctx, step, n)
	}
}
func (m MultiMetricRecorder) RecordItemWrite(ctx context.Context, step string, n int) {
	for _, r := range m {
		r.RecordItemWrite(ctx, step, n)
	}
}
func (m MultiMetricRecorder) RecordChunkCommit(ctx context.Context, step string) {
	for _, r := range m {
		r.RecordChunkCommit(ctx, step)
	}
}
func (m MultiMetricRecorder) RecordChunkRollback(ctx context.Context, step string) {
	for _, r := range m {
		r.RecordChunkRollback(ctx, step)
	}
}

var _ MetricRecorder = MultiMetricRecorder(nil)
