// Package runner executes jobs: SimpleJob walks an ordered list of steps, and
// SimpleJobRunner drives a job's execution through its lifecycle.
package runner

import (
	"context"
	"errors"
	"time"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// SimpleJob is a port.Job that runs its steps in declaration order.
//
// A step whose StepExecution is already COMPLETED (carried over from a previous
// execution of the same instance) is skipped. The job stops at the first step that
// does not complete.
type SimpleJob struct {
	name           string
	steps          []port.Step
	jobRepository  repository.JobRepository
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Job = (*SimpleJob)(nil)

// NewSimpleJob creates a SimpleJob. A nil recorder or tracer falls back to a no-op.
func NewSimpleJob(
	name string,
	steps []port.Step,
	jobRepository repository.JobRepository,
	jobListeners []port.JobExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *SimpleJob {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	for _, s := range steps {
		s.SetMetricRecorder(metricRecorder)
		s.SetTracer(tracer)
	}
	return &SimpleJob{
		name:           name,
		steps:          steps,
		jobRepository:  jobRepository,
		jobListeners:   jobListeners,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

// JobName returns the job name.
func (j *SimpleJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SimpleJob) Steps() []port.Step {
	return j.steps
}

func (j *SimpleJob) notifyBeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
}

func (j *SimpleJob) notifyAfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
}

// Run executes the steps and leaves jobExecution in a terminal status.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	j.notifyBeforeJob(ctx, jobExecution)

	defer func() {
		if jobExecution.EndTime == nil {
			now := time.Now()
			jobExecution.EndTime = &now
		}
		// Listeners and metrics still run when ctx was cancelled.
		afterCtx := context.WithoutCancel(ctx)
		j.notifyAfterJob(afterCtx, jobExecution)
		j.metricRecorder.RecordJobEnd(afterCtx, jobExecution)

		logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
		for _, se := range jobExecution.StepExecutions {
			logger.Debugf("  StepExecution (Step: %s): %s", se.StepName, se)
		}
	}()

	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context cancelled, interrupting execution of Job '%s': %v", j.name, err)
			jobExecution.AddFailureException(err)
			jobExecution.MarkAsStopped()
			return err
		}

		stepName := step.StepName()
		jobExecution.CurrentStepName = stepName

		stepExecution := jobExecution.StepExecution(stepName)
		switch {
		case stepExecution == nil:
			stepExecution = model.NewStepExecution(model.NewID(), jobExecution, stepName)
			jobExecution.AddStepExecution(stepExecution)
			if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
				err = exception.NewBatchError(j.name, "error saving new StepExecution", err, false, false)
				j.fail(ctx, jobExecution, err)
				return err
			}
			logger.Debugf("Job '%s': created StepExecution (ID: %s) for step '%s'.", j.name, stepExecution.ID, stepName)
		case stepExecution.Status == model.BatchStatusCompleted:
			logger.Infof("Job '%s': step '%s' already completed. Skipping execution.", j.name, stepName)
			continue
		default:
			logger.Infof("Job '%s': resuming step '%s' (StepExecution ID: %s, restart offset %d).",
				j.name, stepName, stepExecution.ID, stepExecution.RestartOffset)
		}

		err := step.Execute(ctx, jobExecution, stepExecution)
		if err == nil && stepExecution.Status != model.BatchStatusCompleted {
			err = exception.NewBatchErrorf(j.name, "step '%s' ended with status %s", stepName, stepExecution.Status)
		}
		if err != nil {
			logger.Errorf("Job '%s': step '%s' did not complete: %v", j.name, stepName, err)
			if stepExecution.Status == model.BatchStatusStopped || errors.Is(err, context.Canceled) {
				jobExecution.AddFailureException(err)
				jobExecution.MarkAsStopped()
				return err
			}
			j.fail(ctx, jobExecution, err)
			return err
		}
		logger.Infof("Job '%s': step '%s' completed. ExitStatus: %s", j.name, stepName, stepExecution.ExitStatus)
	}

	jobExecution.MarkAsCompleted()
	return nil
}

func (j *SimpleJob) fail(ctx context.Context, jobExecution *model.JobExecution, err error) {
	j.tracer.RecordError(ctx, "job_runner", err)
	jobExecution.MarkAsFailed(err)
}
