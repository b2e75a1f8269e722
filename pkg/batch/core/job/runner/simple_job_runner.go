package runner

import (
	"context"
	"time"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// SimpleJobRunner is a port.JobRunner that runs the job synchronously in the caller's goroutine.
type SimpleJobRunner struct {
	jobRepository repository.JobRepository
}

var _ port.JobRunner = (*SimpleJobRunner)(nil)

// NewSimpleJobRunner creates a SimpleJobRunner.
func NewSimpleJobRunner(repo repository.JobRepository) *SimpleJobRunner {
	return &SimpleJobRunner{jobRepository: repo}
}

// Run moves jobExecution to STARTED, executes job, and persists the terminal state.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, jobExecution *model.JobExecution) {
	if jobExecution.Status == model.BatchStatusStarting {
		jobExecution.MarkAsStarted()
		if err := r.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
			logger.Errorf("JobRunner: failed to update JobExecution (ID: %s) status to STARTED: %v", jobExecution.ID, err)
			jobExecution.MarkAsFailed(err)
			r.persist(ctx, jobExecution)
			return
		}
	}

	err := job.Run(ctx, jobExecution)

	if err != nil {
		if !jobExecution.Status.IsFinished() {
			jobExecution.MarkAsFailed(err)
		}
	} else if !jobExecution.Status.IsFinished() {
		jobExecution.MarkAsCompleted()
	}
	if jobExecution.EndTime == nil {
		now := time.Now()
		jobExecution.EndTime = &now
	}

	r.persist(ctx, jobExecution)
}

func (r *SimpleJobRunner) persist(ctx context.Context, jobExecution *model.JobExecution) {
	// The terminal state must land even when ctx was cancelled.
	if err := r.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
		logger.Errorf("JobRunner: failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, err)
	}
}
