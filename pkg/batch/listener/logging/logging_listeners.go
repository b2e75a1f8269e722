// Package logging provides listeners that write execution lifecycle events to the
// framework logger.
package logging

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// LoggingJobListener logs job start and end.
type LoggingJobListener struct{}

// NewLoggingJobListener creates a LoggingJobListener.
func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.With("job", jobExecution.JobName, "execution", jobExecution.ID).
		Infof("Job starting (restart=%d, params=%s)", jobExecution.RestartCount, jobExecution.Parameters)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	log := logger.With("job", jobExecution.JobName, "execution", jobExecution.ID)
	if jobExecution.Status == model.BatchStatusCompleted {
		log.Infof("Job finished: %s", jobExecution.Status)
		return
	}
	log.Warnf("Job finished: %s, failures: %v", jobExecution.Status, jobExecution.Failures)
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// LoggingStepListener logs step start and end, with the step's counters.
type LoggingStepListener struct{}

// NewLoggingStepListener creates a LoggingStepListener.
func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.With("step", stepExecution.StepName, "execution", stepExecution.ID).
		Infof("Step starting (restartOffset=%d)", stepExecution.RestartOffset)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.With("step", stepExecution.StepName, "execution", stepExecution.ID).
		Infof("Step finished: %s (read=%d, filtered=%d, written=%d, commits=%d, rollbacks=%d)",
			stepExecution.Status, stepExecution.ReadCount, stepExecution.FilterCount,
			stepExecution.WriteCount, stepExecution.CommitCount, stepExecution.RollbackCount)
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// LoggingChunkListener logs chunk boundaries at debug level and rollbacks at warn level.
type LoggingChunkListener struct{}

// NewLoggingChunkListener creates a LoggingChunkListener.
func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Chunk starting in step '%s' at offset %d.", stepExecution.StepName, stepExecution.RestartOffset)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Chunk done in step '%s': read=%d, written=%d, offset=%d.",
		stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.RestartOffset)
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Warnf("Chunk rolled back in step '%s' (rollbacks=%d): %v", stepExecution.StepName, stepExecution.RollbackCount, err)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// LoggingItemListener logs read, process and write failures.
type LoggingItemListener struct{}

// NewLoggingItemListener creates a LoggingItemListener.
func NewLoggingItemListener() *LoggingItemListener {
	return &LoggingItemListener{}
}

func (l *LoggingItemListener) OnReadError(ctx context.Context, err error) {
	logger.Errorf("Item read failed: %v", err)
}

func (l *LoggingItemListener) OnProcessError(ctx context.Context, item interface{}, err error) {
	logger.Errorf("Item process failed for %+v: %v", item, err)
}

func (l *LoggingItemListener) OnWriteError(ctx context.Context, items []interface{}, err error) {
	logger.Errorf("Write of %d items failed: %v", len(items), err)
}

var (
	_ port.ItemReadListener    = (*LoggingItemListener)(nil)
	_ port.ItemProcessListener = (*LoggingItemListener)(nil)
	_ port.ItemWriteListener   = (*LoggingItemListener)(nil)
)

// StepListenerRegistrar is implemented by steps that accept step listeners.
type StepListenerRegistrar interface {
	RegisterStepExecutionListener(l port.StepExecutionListener)
}

// ChunkListenerRegistrar is implemented by chunk steps.
type ChunkListenerRegistrar interface {
	RegisterChunkListener(l port.ChunkListener)
	RegisterItemReadListener(l port.ItemReadListener)
	RegisterItemProcessListener(l port.ItemProcessListener)
	RegisterItemWriteListener(l port.ItemWriteListener)
}

// Attach registers the logging step, chunk and item listeners on every step that
// accepts them and returns steps unchanged.
func Attach(steps ...port.Step) []port.Step {
	stepListener := NewLoggingStepListener()
	chunkListener := NewLoggingChunkListener()
	itemListener := NewLoggingItemListener()
	for _, s := range steps {
		if r, ok := s.(StepListenerRegistrar); ok {
			r.RegisterStepExecutionListener(stepListener)
		}
		if r, ok := s.(ChunkListenerRegistrar); ok {
			r.RegisterChunkListener(chunkListener)
			r.RegisterItemReadListener(itemListener)
			r.RegisterItemProcessListener(itemListener)
			r.RegisterItemWriteListener(itemListener)
		}
	}
	return steps
}
