// Package tasklet implements the tasklet-oriented step: a single unit of work invoked
// repeatedly until it reports that it is finished.
package tasklet

import (
	"context"
	"database/sql"
	"errors"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// TaskletStep is a port.Step that runs a port.Tasklet. Each invocation gets its own
// transaction, available to the tasklet through tx.FromContext, and the StepExecution
// is persisted inside it before it commits.
//
// After every committed invocation RestartOffset is the offset the step resumed from
// plus ReadCount, so a tasklet that pages by hand can use RestartOffset as its cursor
// and pick up where a failed run stopped.
type TaskletStep struct {
	name                   string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	txManager              tx.TransactionManager
	txOptions              *sql.TxOptions
	stepExecutionListeners []port.StepExecutionListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Step = (*TaskletStep)(nil)

// NewTaskletStep creates a TaskletStep. A nil txManager means a resourceless manager.
func NewTaskletStep(
	name string,
	tasklet port.Tasklet,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
	stepExecutionListeners ...port.StepExecutionListener,
) *TaskletStep {
	if txManager == nil {
		txManager = tx.NewResourcelessTransactionManager()
	}
	return &TaskletStep{
		name:                   name,
		tasklet:                tasklet,
		jobRepository:          jobRepository,
		txManager:              txManager,
		stepExecutionListeners: stepExecutionListeners,
		metricRecorder:         metrics.NewNoOpMetricRecorder(),
		tracer:                 metrics.NewNoOpTracer(),
	}
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string { return s.name }

// SetMetricRecorder implements port.Step.
func (s *TaskletStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

// SetTracer implements port.Step.
func (s *TaskletStep) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// SetTransactionOptions sets the options used to begin each iteration's transaction.
func (s *TaskletStep) SetTransactionOptions(opts *sql.TxOptions) {
	s.txOptions = opts
}

// RegisterStepExecutionListener adds a step listener.
func (s *TaskletStep) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepExecutionListeners = append(s.stepExecutionListeners, l)
}

// Execute invokes the tasklet until it returns RepeatStatusFinished or an error.
// ctx is checked between invocations; cancellation leaves the step STOPPED.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.WithStepExecution(ctx, stepExecution)

	logger.Infof("TaskletStep '%s' executing.", s.name)

	stepExecution.MarkAsStarted()
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "failed to update StepExecution status to STARTED", err, false, false)
	}
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	runErr := s.repeat(ctx, stepExecution)

	switch {
	case runErr == nil:
		stepExecution.MarkAsCompleted()
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		stepExecution.MarkAsStopped()
		stepExecution.AddFailureException(runErr)
	default:
		s.tracer.RecordError(ctx, s.name, runErr)
		stepExecution.MarkAsFailed(runErr)
	}

	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if err := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); err != nil {
		logger.Errorf("TaskletStep '%s': failed to persist final StepExecution: %v", s.name, err)
		if runErr == nil {
			runErr = exception.NewBatchError(s.name, "failed to persist final StepExecution", err, false, false)
		}
	}

	logger.Infof("TaskletStep '%s' finished: %s", s.name, stepExecution)
	return runErr
}

func (s *TaskletStep) repeat(ctx context.Context, se *model.StepExecution) error {
	startOffset := se.RestartOffset
	if startOffset > 0 {
		logger.Infof("TaskletStep '%s': resuming at offset %d.", s.name, startOffset)
	}
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := s.txManager.Begin(ctx, s.txOptions)
		if err != nil {
			return exception.NewBatchError(s.name, "failed to begin tasklet transaction", err, false, true)
		}
		txCtx := tx.WithTx(ctx, t)
		checkpoint := se.Checkpoint()

		status, err := s.tasklet.Execute(txCtx, se)
		if err != nil {
			return s.rollback(ctx, se, t, checkpoint, exception.NewBatchError(s.name, "tasklet execution failed", err, false, false))
		}

		// Counters the tasklet moved are committed together with its work.
		se.CommitCount++
		se.RestartOffset = startOffset + se.ReadCount
		if err := s.jobRepository.UpdateStepExecution(txCtx, se); err != nil {
			return s.rollback(ctx, se, t, checkpoint, exception.NewBatchError(s.name, "failed to persist StepExecution", err, false, false))
		}
		if err := s.txManager.Commit(t); err != nil {
			return s.rollback(ctx, se, t, checkpoint, exception.NewBatchError(s.name, "failed to commit tasklet transaction", err, false, false))
		}
		s.metricRecorder.RecordChunkCommit(ctx, s.name)
		logger.Debugf("TaskletStep '%s': iteration %d returned %s (restartOffset=%d).", s.name, iteration, status, se.RestartOffset)

		if status == port.RepeatStatusFinished {
			return nil
		}
	}
}

// rollback discards the iteration and any counters the tasklet moved during it.
func (s *TaskletStep) rollback(ctx context.Context, se *model.StepExecution, t tx.Tx, checkpoint model.ChunkCheckpoint, cause error) error {
	if rerr := s.txManager.Rollback(t); rerr != nil {
		logger.Errorf("TaskletStep '%s': rollback failed: %v", s.name, rerr)
	}
	se.RevertTo(checkpoint)
	se.RollbackCount++
	s.metricRecorder.RecordChunkRollback(ctx, s.name)
	return cause
}
