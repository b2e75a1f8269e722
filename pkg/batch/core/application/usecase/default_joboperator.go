package usecase

import (
	"context"
	"fmt"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultJobOperator implements JobOperator on top of a JobRepository and the
// SimpleJobLauncher that owns the running executions.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   *SimpleJobLauncher
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a DefaultJobOperator.
func NewDefaultJobOperator(jobRepository repository.JobRepository, launcher *SimpleJobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   launcher,
	}
}

func (o *DefaultJobOperator) load(ctx context.Context, op, executionID string) (*model.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("%s: failed to load JobExecution (ID: %s)", op, executionID), err, false, false)
	}
	return jobExecution, nil
}

// Restart relaunches the instance of a FAILED or STOPPED execution with its parameters.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string) (*model.JobExecution, error) {
	prev, err := o.load(ctx, "restart", executionID)
	if err != nil {
		return nil, err
	}
	if !prev.Status.IsRestartable() {
		return nil, exception.NewBatchErrorf("job_operator", "restart: JobExecution (ID: %s) is not restartable (status: %s)", executionID, prev.Status)
	}
	logger.Infof("JobOperator: restarting Job '%s' from execution %s.", prev.JobName, executionID)
	return o.jobLauncher.Launch(ctx, prev.JobName, prev.Parameters)
}

// Stop cancels a running execution owned by this process.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	jobExecution, err := o.load(ctx, "stop", executionID)
	if err != nil {
		return err
	}
	if jobExecution.Status.IsFinished() {
		return exception.NewBatchErrorf("job_operator", "stop: JobExecution (ID: %s) is already finished (%s)", executionID, jobExecution.Status)
	}
	cancel, ok := o.jobLauncher.CancelFunc(executionID)
	if !ok {
		return exception.NewBatchErrorf("job_operator", "stop: JobExecution (ID: %s) is not running in this process", executionID)
	}
	cancel()
	logger.Infof("JobOperator: sent stop signal to JobExecution (ID: %s).", executionID)
	return nil
}

// Abandon marks an execution ABANDONED so that its instance is never resumed. It accepts
// FAILED and STOPPED executions, and unfinished executions that are not running in this
// process (left behind by a crash).
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	jobExecution, err := o.load(ctx, "abandon", executionID)
	if err != nil {
		return err
	}
	switch {
	case jobExecution.Status == model.BatchStatusAbandoned:
		return nil
	case jobExecution.Status == model.BatchStatusCompleted:
		return exception.NewBatchErrorf("job_operator", "abandon: JobExecution (ID: %s) is COMPLETED", executionID)
	case !jobExecution.Status.IsFinished():
		if _, running := o.jobLauncher.CancelFunc(executionID); running {
			return exception.NewBatchErrorf("job_operator", "abandon: JobExecution (ID: %s) is running; stop it first", executionID)
		}
	}

	jobExecution.MarkAsAbandoned()
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("abandon: failed to update JobExecution (ID: %s)", executionID), err, false, false)
	}
	logger.Infof("JobOperator: abandoned JobExecution (ID: %s).", executionID)
	return nil
}
