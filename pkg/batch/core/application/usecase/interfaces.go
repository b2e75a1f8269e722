// Package usecase holds the application services built on the job repository:
// launching, operating on and exploring job executions.
package usecase

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// JobOperator performs operations on job executions.
type JobOperator interface {
	// Restart relaunches the instance of a FAILED or STOPPED execution and returns the
	// new execution.
	Restart(ctx context.Context, executionID string) (*model.JobExecution, error)

	// Stop cancels a running execution. The step observes the cancellation at the next
	// chunk boundary and the execution ends STOPPED.
	Stop(ctx context.Context, executionID string) error

	// Abandon marks an execution that cannot be resumed as ABANDONED.
	Abandon(ctx context.Context, executionID string) error
}

// JobExplorer is a read-only view of job metadata.
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves all executions of a JobInstance, oldest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest execution of a JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetLastJobInstance retrieves the most recently created instance of jobName.
	GetLastJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error)

	// GetJobNames retrieves the names of all jobs that have run.
	GetJobNames(ctx context.Context) ([]string, error)

	// GetParameters retrieves the JobParameters of an execution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)
}
