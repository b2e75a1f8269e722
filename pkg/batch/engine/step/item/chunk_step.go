// Package item implements the chunk-oriented step: items are read, processed and
// written in groups of chunkSize, each group committed as one transaction.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultChunkSize is the commit interval used when none is configured.
const DefaultChunkSize = 10

// ChunkStep is a port.Step driving reader, processor and writer in fixed-size chunks.
//
// Counts are credited to the StepExecution only when a chunk commits. A chunk that
// fails leaves ReadCount, WriteCount, FilterCount and RestartOffset at the values of
// the last commit.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	chunkSize int

	jobRepository repository.JobRepository
	txManager     tx.TransactionManager
	txOptions     *sql.TxOptions

	stepExecutionListeners []port.StepExecutionListener
	chunkListeners         []port.ChunkListener
	itemReadListeners      []port.ItemReadListener
	itemProcessListeners   []port.ItemProcessListener
	itemWriteListeners     []port.ItemWriteListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// NewChunkStep creates a ChunkStep.
//
// Parameters:
//
//	name: The step name.
//	reader: The item source.
//	processor: The transform stage. When nil, items pass through unchanged, which
//	  requires I and O to be the same type.
//	writer: The item sink.
//	chunkSize: The commit interval. Values below 1 fall back to DefaultChunkSize.
//	jobRepository: Persists the StepExecution inside every chunk transaction.
//	txManager: Brackets each chunk. Nil means a resourceless manager.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
) *ChunkStep[I, O] {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if txManager == nil {
		txManager = tx.NewResourcelessTransactionManager()
	}
	return &ChunkStep[I, O]{
		name:           name,
		reader:         reader,
		processor:      processor,
		writer:         writer,
		chunkSize:      chunkSize,
		jobRepository:  jobRepository,
		txManager:      txManager,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string { return s.name }

// ChunkSize returns the commit interval.
func (s *ChunkStep[I, O]) ChunkSize() int { return s.chunkSize }

// SetMetricRecorder implements port.Step.
func (s *ChunkStep[I, O]) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

// SetTracer implements port.Step.
func (s *ChunkStep[I, O]) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// SetTransactionOptions sets the options used to begin each chunk transaction.
func (s *ChunkStep[I, O]) SetTransactionOptions(opts *sql.TxOptions) {
	s.txOptions = opts
}

// RegisterStepExecutionListener adds a step listener.
func (s *ChunkStep[I, O]) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepExecutionListeners = append(s.stepExecutionListeners, l)
}

// RegisterChunkListener adds a chunk listener.
func (s *ChunkStep[I, O]) RegisterChunkListener(l port.ChunkListener) {
	s.chunkListeners = append(s.chunkListeners, l)
}

// RegisterItemReadListener adds a read listener.
func (s *ChunkStep[I, O]) RegisterItemReadListener(l port.ItemReadListener) {
	s.itemReadListeners = append(s.itemReadListeners, l)
}

// RegisterItemProcessListener adds a process listener.
func (s *ChunkStep[I, O]) RegisterItemProcessListener(l port.ItemProcessListener) {
	s.itemProcessListeners = append(s.itemProcessListeners, l)
}

// RegisterItemWriteListener adds a write listener.
func (s *ChunkStep[I, O]) RegisterItemWriteListener(l port.ItemWriteListener) {
	s.itemWriteListeners = append(s.itemWriteListeners, l)
}

// Execute runs the chunk loop until the reader is exhausted, a chunk fails, or ctx is
// cancelled. Cancellation is observed between chunks and leaves the step STOPPED.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.WithStepExecution(ctx, stepExecution)
	if stepExecution.ExecutionContext == nil {
		stepExecution.ExecutionContext = model.NewExecutionContext()
	}

	logger.Infof("ChunkStep '%s' executing (chunkSize=%d, restartOffset=%d).", s.name, s.chunkSize, stepExecution.RestartOffset)

	stepExecution.MarkAsStarted()
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "failed to update StepExecution status to STARTED", err, false, false)
	}
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	runErr := s.run(ctx, stepExecution)

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

	// The final update must land even when ctx was cancelled.
	if err := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); err != nil {
		logger.Errorf("ChunkStep '%s': failed to persist final StepExecution: %v", s.name, err)
		if runErr == nil {
			runErr = exception.NewBatchError(s.name, "failed to persist final StepExecution", err, false, false)
		}
	}

	logger.Infof("ChunkStep '%s' finished: %s", s.name, stepExecution)
	return runErr
}

func (s *ChunkStep[I, O]) run(ctx context.Context, se *model.StepExecution) (err error) {
	if err := s.reader.Open(ctx, se.ExecutionContext); err != nil {
		return exception.NewBatchError(s.name, "failed to open ItemReader", err, false, false)
	}
	if err := s.writer.Open(ctx, se.ExecutionContext); err != nil {
		if cerr := s.reader.Close(ctx); cerr != nil {
			logger.Warnf("ChunkStep '%s': failed to close ItemReader: %v", s.name, cerr)
		}
		return exception.NewBatchError(s.name, "failed to open ItemWriter", err, false, false)
	}
	defer func() {
		var closeErr *multierror.Error
		if cerr := s.reader.Close(ctx); cerr != nil {
			closeErr = multierror.Append(closeErr, exception.NewBatchError(s.name, "failed to close ItemReader", cerr, false, false))
		}
		if cerr := s.writer.Close(ctx); cerr != nil {
			closeErr = multierror.Append(closeErr, exception.NewBatchError(s.name, "failed to close ItemWriter", cerr, false, false))
		}
		if closeErr != nil {
			if err == nil {
				err = closeErr.ErrorOrNil()
			} else {
				logger.Warnf("ChunkStep '%s': %v", s.name, closeErr)
			}
		}
	}()

	startOffset := se.RestartOffset
	if startOffset > 0 {
		logger.Infof("ChunkStep '%s': resuming after %d committed items.", s.name, startOffset)
		if err := s.skipTo(ctx, startOffset); err != nil {
			return exception.NewBatchError(s.name, fmt.Sprintf("failed to skip to restart offset %d", startOffset), err, false, false)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			logger.Warnf("ChunkStep '%s': cancelled at restart offset %d.", s.name, se.RestartOffset)
			return err
		}
		done, err := s.processChunk(ctx, se, startOffset)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *ChunkStep[I, O]) skipTo(ctx context.Context, n int) error {
	if skipper, ok := s.reader.(port.Skipper); ok {
		return skipper.Skip(ctx, n)
	}
	for i := 0; i < n; i++ {
		if _, err := s.reader.Read(ctx); err != nil {
			if isEndOfStream(err) {
				return nil
			}
			return err
		}
	}
	return nil
}

// processChunk reads, processes and writes one chunk. It reports done once the reader
// signalled end of stream.
func (s *ChunkStep[I, O]) processChunk(ctx context.Context, se *model.StepExecution, startOffset int) (done bool, err error) {
	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, se)
	}

	t, err := s.txManager.Begin(ctx, s.txOptions)
	if err != nil {
		err = exception.NewBatchError(s.name, "failed to begin chunk transaction", err, false, true)
		s.notifyChunkError(ctx, se, err)
		return false, err
	}

	// Components record positions in the execution context while writing; those
	// entries must not outlive a rolled back chunk.
	snapshot := se.ExecutionContext.Copy()

	items := make([]O, 0, s.chunkSize)
	read, filtered := 0, 0
	eof := false

	for read < s.chunkSize {
		in, rerr := s.reader.Read(ctx)
		if rerr != nil {
			if isEndOfStream(rerr) {
				eof = true
				break
			}
			for _, l := range s.itemReadListeners {
				l.OnReadError(ctx, rerr)
			}
			return false, s.rollback(ctx, se, t, snapshot, exception.NewBatchError(s.name, "item read failed", rerr, false, false))
		}
		read++

		out, perr := s.process(ctx, in)
		if errors.Is(perr, port.ErrItemFiltered) {
			filtered++
			continue
		}
		if perr != nil {
			for _, l := range s.itemProcessListeners {
				l.OnProcessError(ctx, in, perr)
			}
			return false, s.rollback(ctx, se, t, snapshot, exception.NewBatchError(s.name, "item process failed", perr, false, false))
		}
		if isNil(out) {
			filtered++
			continue
		}
		items = append(items, out)
	}

	if read == 0 {
		// End of stream on a chunk boundary; nothing to commit.
		if rerr := s.txManager.Rollback(t); rerr != nil {
			logger.Warnf("ChunkStep '%s': failed to release empty chunk transaction: %v", s.name, rerr)
		}
		for _, l := range s.chunkListeners {
			l.AfterChunk(ctx, se)
		}
		return true, nil
	}

	if len(items) > 0 {
		if werr := s.writer.Write(ctx, t, items); werr != nil {
			if !exception.IsWriteError(werr) {
				werr = exception.NewWriteError(s.name, len(items), werr)
			}
			for _, l := range s.itemWriteListeners {
				l.OnWriteError(ctx, toInterfaces(items), werr)
			}
			return false, s.rollback(ctx, se, t, snapshot, exception.NewBatchError(s.name, "chunk write failed", werr, false, false))
		}
	}

	// The StepExecution is saved in the chunk transaction, so committed items and the
	// stored RestartOffset move together.
	checkpoint := se.Checkpoint()
	se.ApplyChunk(read, filtered, len(items), startOffset)
	if uerr := s.jobRepository.UpdateStepExecution(tx.WithTx(ctx, t), se); uerr != nil {
		se.RevertTo(checkpoint)
		return false, s.rollback(ctx, se, t, snapshot, exception.NewBatchError(s.name, "failed to persist StepExecution in chunk transaction", uerr, false, false))
	}
	if cerr := s.txManager.Commit(t); cerr != nil {
		se.RevertTo(checkpoint)
		return false, s.rollback(ctx, se, t, snapshot, exception.NewBatchError(s.name, "failed to commit chunk transaction", cerr, false, false))
	}

	s.metricRecorder.RecordItemRead(ctx, s.name, read)
	s.metricRecorder.RecordItemFilter(ctx, s.name, filtered)
	s.metricRecorder.RecordItemWrite(ctx, s.name, len(items))
	s.metricRecorder.RecordChunkCommit(ctx, s.name)
	s.tracer.RecordEvent(ctx, "chunk.commit", map[string]interface{}{
		"read": read, "filtered": filtered, "written": len(items), "restartOffset": se.RestartOffset,
	})
	logger.Debugf("ChunkStep '%s': chunk committed (read=%d, filtered=%d, written=%d, restartOffset=%d).",
		s.name, read, filtered, len(items), se.RestartOffset)

	for _, l := range s.chunkListeners {
		l.AfterChunk(ctx, se)
	}
	return eof, nil
}

func (s *ChunkStep[I, O]) process(ctx context.Context, in I) (O, error) {
	if s.processor == nil {
		out, ok := any(in).(O)
		if !ok {
			var zero O
			return zero, fmt.Errorf("no processor configured and %T is not assignable to the writer's item type", in)
		}
		return out, nil
	}
	return s.processor.Process(ctx, in)
}

// rollback discards the chunk. StepExecution counters and the execution context
// stay at the last commit.
func (s *ChunkStep[I, O]) rollback(ctx context.Context, se *model.StepExecution, t tx.Tx, snapshot model.ExecutionContext, cause error) error {
	if err := s.txManager.Rollback(t); err != nil {
		logger.Errorf("ChunkStep '%s': rollback failed: %v", s.name, err)
	}
	se.ExecutionContext.Restore(snapshot)
	se.RollbackCount++
	s.metricRecorder.RecordChunkRollback(ctx, s.name)
	logger.Warnf("ChunkStep '%s': chunk rolled back at restart offset %d: %v", s.name, se.RestartOffset, cause)
	s.notifyChunkError(ctx, se, cause)
	return cause
}

func (s *ChunkStep[I, O]) notifyChunkError(ctx context.Context, se *model.StepExecution, err error) {
	for _, l := range s.chunkListeners {
		l.AfterChunkError(ctx, se, err)
	}
}

func isEndOfStream(err error) bool {
	return errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF)
}

// isNil reports whether a processor result means "filtered": a nil pointer or a nil
// interface. Nil slices and maps are items like any other.
func isNil[O any](v O) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func toInterfaces[O any](items []O) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
