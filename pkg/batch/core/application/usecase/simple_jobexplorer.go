package usecase

import (
	"context"
	"fmt"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// SimpleJobExplorer answers JobExplorer queries from a JobRepository.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository repository.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: jobRepository}
}

// GetJobExecution retrieves a JobExecution by its ID.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("failed to retrieve JobExecution (ID: %s)", executionID), err, false, false)
	}
	return jobExecution, nil
}

// GetJobExecutions retrieves all executions of a JobInstance, oldest first.
func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	jobExecutions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("failed to retrieve JobExecutions of JobInstance (ID: %s)", instanceID), err, false, false)
	}
	logger.Debugf("Retrieved %d JobExecutions of JobInstance (ID: %s).", len(jobExecutions), instanceID)
	return jobExecutions, nil
}

// GetLastJobExecution retrieves the latest execution of a JobInstance.
func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("failed to retrieve the latest JobExecution of JobInstance (ID: %s)", instanceID), err, false, false)
	}
	return jobExecution, nil
}

// GetLastJobInstance retrieves the most recently created instance of jobName.
func (e *SimpleJobExplorer) GetLastJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	jobInstance, err := e.jobRepository.FindLatestJobInstance(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("failed to retrieve the latest JobInstance of '%s'", jobName), err, false, false)
	}
	return jobInstance, nil
}

// GetJobNames retrieves the names of all jobs that have run.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := e.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", "failed to retrieve job names", err, false, false)
	}
	return jobNames, nil
}

// GetParameters retrieves the JobParameters of an execution.
func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	jobExecution, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return model.NewJobParameters(), err
	}
	return jobExecution.Parameters, nil
}
