package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ErrJobExecutionNotFound is returned when no JobExecution matches the query.
var ErrJobExecutionNotFound = errors.New("job execution not found")

// JobExecution persists JobExecutions. Finders return executions with their
// StepExecutions attached.
type JobExecution interface {
	// SaveJobExecution stores a new JobExecution.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// UpdateJobExecution updates status, times and failures of an existing JobExecution.
	// The update fails with an optimistic locking error if the stored version differs.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// FindJobExecutionByID returns the JobExecution with executionID.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)
	// FindLatestJobExecution returns the most recent execution of the instance.
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
	// FindJobExecutionsByJobInstance returns all executions of the instance, oldest first.
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error)
}
