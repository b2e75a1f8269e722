package metrics

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// Tracer opens spans around job and step executions.
type Tracer interface {
	// StartJobSpan starts a span for the job; the returned func ends it.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	// StartStepSpan starts a span for the step; the returned func ends it.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	// RecordError attaches err to the current span.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds a named event to the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
