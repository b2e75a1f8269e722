// Package port defines the core interfaces (ports) of the batch engine: jobs, steps,
// the reader/processor/writer capabilities a chunk step drives, tasklets, and listeners.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.Read at end of stream. It is not a failure.
var ErrNoMoreItems = errors.New("no more items to read")

// ErrItemFiltered may be returned by an ItemProcessor whose output type has no
// filtering nil value (structs, scalars, slices, maps). The item is counted as
// filtered and the chunk carries on.
var ErrItemFiltered = errors.New("item filtered")

// Job is a named, ordered sequence of steps.
type Job interface {
	// Run executes the steps in order, stopping at the first one that does not complete.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//
	// Returns:
	//   error: An error if a step failed or the execution could not be persisted.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// JobName returns the logical name of the job.
	JobName() string
	// Steps returns the steps in execution order.
	Steps() []Step
}

// JobRunner drives a Job through its lifecycle: status transitions, listeners,
// metrics and persistence of the JobExecution.
type JobRunner interface {
	// Run executes the job synchronously. The outcome is recorded on jobExecution.
	Run(ctx context.Context, job Job, jobExecution *model.JobExecution)
}

// JobLauncher resolves a job by name and launches or restarts it.
type JobLauncher interface {
	// Launch runs jobName with params and returns the finished execution.
	//
	// Parameters:
	//   ctx: The context for the operation. Cancellation stops the job at the next chunk boundary.
	//   jobName: The registered job name.
	//   params: The launch parameters.
	//
	// Returns:
	//   *model.JobExecution: The execution, in a terminal state.
	//   error: An error if the job could not be launched. A job that ran and failed is
	//   reported through the execution status, not this error.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// Step is a single unit of a job, executed either as a chunk loop or as a tasklet.
type Step interface {
	// Execute runs the step and records its outcome on stepExecution.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//   stepExecution: The current StepExecution instance.
	//
	// Returns:
	//   error: An error if the step failed.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// StepName returns the logical name of the step.
	StepName() string
	// SetMetricRecorder sets the MetricRecorder.
	SetMetricRecorder(recorder metrics.MetricRecorder)
	// SetTracer sets the Tracer.
	SetTracer(tracer metrics.Tracer)
}

// ItemReader is the source of a chunk step.
// O is the type of item read.
type ItemReader[O any] interface {
	// Open acquires the underlying resource.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   ec: The step's ExecutionContext, carrying state from a previous run.
	//
	// Returns:
	//   error: An error if the resource is unavailable.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or ErrNoMoreItems once the source is exhausted.
	Read(ctx context.Context) (O, error)
	// Close releases the underlying resource.
	Close(ctx context.Context) error
}

// Skipper is implemented by readers that can advance their position without
// materializing items. The chunk step uses it to resume at the restart offset.
type Skipper interface {
	// Skip advances past the next n items. Reaching end of stream is not an error.
	Skip(ctx context.Context, n int) error
}

// ItemProcessor transforms items between reading and writing.
// I is the type of input item, O is the type of output item.
type ItemProcessor[I, O any] interface {
	// Process transforms item. A nil pointer or nil interface result, or
	// ErrItemFiltered, marks the item as filtered: it is counted and not written.
	// Nil slices and maps are written as they are; return ErrItemFiltered to drop them.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   item: The input item to be processed.
	//
	// Returns:
	//   O: The processed item, or nil if filtered.
	//   error: An error if processing fails. The chunk is rolled back.
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter is the sink of a chunk step.
// I is the type of item written.
type ItemWriter[I any] interface {
	// Open acquires the underlying resource.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write persists one chunk of items as a unit within t.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   t: The chunk transaction.
	//   items: The surviving items of the chunk, never empty.
	//
	// Returns:
	//   error: An error if writing fails. The chunk is rolled back.
	Write(ctx context.Context, t tx.Tx, items []I) error
	// Close flushes and releases the underlying resource.
	Close(ctx context.Context) error
}

// RepeatStatus tells the tasklet step whether to invoke the tasklet again.
type RepeatStatus int

const (
	// RepeatStatusContinuable asks for another invocation.
	RepeatStatusContinuable RepeatStatus = iota
	// RepeatStatusFinished ends the step.
	RepeatStatusFinished
)

func (s RepeatStatus) String() string {
	if s == RepeatStatusFinished {
		return "FINISHED"
	}
	return "CONTINUABLE"
}

// Tasklet is a unit of work that manages its own batching. It is invoked repeatedly,
// each invocation in its own transaction, until it returns RepeatStatusFinished.
type Tasklet interface {
	// Execute performs one iteration.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   stepExecution: The current StepExecution. The tasklet may read and update its counters.
	//
	// Returns:
	//   RepeatStatus: Whether to invoke the tasklet again.
	//   error: An error if the iteration failed. The step fails.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (RepeatStatus, error)
}

// JobParametersIncrementer derives the parameters of the next run of a job.
type JobParametersIncrementer interface {
	// Key returns the parameter name the incrementer manages.
	Key() string
	// GetNext generates the next JobParameters from the previous run's parameters.
	GetNext(params model.JobParameters) model.JobParameters
}

// StepExecutionListener is notified around a step execution.
type StepExecutionListener interface {
	// BeforeStep is called just before a step execution starts.
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called after a step execution completes (regardless of success or failure).
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is notified around each chunk.
type ChunkListener interface {
	// BeforeChunk is called just before a chunk is read.
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunk is called after a chunk commits.
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunkError is called after a chunk is rolled back.
	AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

// JobExecutionListener is notified around a job execution.
type JobExecutionListener interface {
	// BeforeJob is called just before a job execution starts.
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called after a job execution completes (regardless of success or failure).
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// ItemReadListener is notified of read failures.
type ItemReadListener interface {
	OnReadError(ctx context.Context, err error)
}

// ItemProcessListener is notified of process failures.
type ItemProcessListener interface {
	OnProcessError(ctx context.Context, item interface{}, err error)
}

// ItemWriteListener is notified of write failures.
type ItemWriteListener interface {
	OnWriteError(ctx context.Context, items []interface{}, err error)
}
