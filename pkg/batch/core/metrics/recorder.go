// Package metrics defines the observability hooks the engine calls while running jobs.
// Concrete recorders and tracers live in infrastructure/metrics.
package metrics

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// MetricRecorder receives job, step and chunk level measurements.
// Item counts are reported per committed chunk, never per item.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	RecordItemRead(ctx context.Context, stepName string, count int)
	RecordItemFilter(ctx context.Context, stepName string, count int)
	RecordItemWrite(ctx context.Context, stepName string, count int)

	RecordChunkCommit(ctx context.Context, stepName string)
	RecordChunkRollback(ctx context.Context, stepName string)
}
