package metrics

import (
	"context"
	"sync"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultAsyncBufferSize is the queue size used when none is configured.
const DefaultAsyncBufferSize = 100

type metricEventType int

const (
	eventJobStart metricEventType = iota
	eventJobEnd
	eventStepStart
	eventStepEnd
	eventItemRead
	eventItemFilter
	eventItemWrite
	eventChunkCommit
	eventChunkRollback
)

// metricEvent is one queued measurement. ctx is detached from cancellation so that
// values read from it (the step execution) survive the caller.
type metricEvent struct {
	typ           metricEventType
	ctx           context.Context
	jobExecution  *model.JobExecution
	stepExecution *model.StepExecution
	stepName      string
	count         int
}

// AsyncMetricRecorder queues measurements and hands them to a synchronous recorder
// from a single worker goroutine. When the queue is full, measurements are dropped.
type AsyncMetricRecorder struct {
	queue        chan metricEvent
	stopCh       chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
	syncRecorder metrics.MetricRecorder
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorder starts the worker. A bufferSize below 1 means DefaultAsyncBufferSize.
func NewAsyncMetricRecorder(bufferSize int, syncRecorder metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = DefaultAsyncBufferSize
	}
	r := &AsyncMetricRecorder{
		queue:        make(chan metricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRecorder,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.queue:
			r.process(ev)
		case <-r.stopCh:
			remaining := len(r.queue)
			for i := 0; i < remaining; i++ {
				r.process(<-r.queue)
			}
			logger.Debugf("AsyncMetricRecorder: worker stopped after draining %d events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) process(ev metricEvent) {
	switch ev.typ {
	case eventJobStart:
		r.syncRecorder.RecordJobStart(ev.ctx, ev.jobExecution)
	case eventJobEnd:
		r.syncRecorder.RecordJobEnd(ev.ctx, ev.jobExecution)
	case eventStepStart:
		r.syncRecorder.RecordStepStart(ev.ctx, ev.stepExecution)
	case eventStepEnd:
		r.syncRecorder.RecordStepEnd(ev.ctx, ev.stepExecution)
	case eventItemRead:
		r.syncRecorder.RecordItemRead(ev.ctx, ev.stepName, ev.count)
	case eventItemFilter:
		r.syncRecorder.RecordItemFilter(ev.ctx, ev.stepName, ev.count)
	case eventItemWrite:
		r.syncRecorder.RecordItemWrite(ev.ctx, ev.stepName, ev.count)
	case eventChunkCommit:
		r.syncRecorder.RecordChunkCommit(ev.ctx, ev.stepName)
	case eventChunkRollback:
		r.syncRecorder.RecordChunkRollback(ev.ctx, ev.stepName)
	}
}

// Close stops the worker after draining the queue. It is safe to call more than once.
func (r *AsyncMetricRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *AsyncMetricRecorder) send(ctx context.Context, ev metricEvent) {
	ev.ctx = context.WithoutCancel(ctx)
	select {
	case <-r.stopCh:
		logger.Warnf("AsyncMetricRecorder: closed, event %d discarded.", ev.typ)
		return
	default:
	}
	select {
	case r.queue <- ev:
	default:
		logger.Warnf("AsyncMetricRecorder: queue full, event %d discarded.", ev.typ)
	}
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.send(ctx, metricEvent{typ: eventJobStart, jobExecution: execution})
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.send(ctx, metricEvent{typ: eventJobEnd, jobExecution: execution})
}

func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.send(ctx, metricEvent{typ: eventStepStart, stepExecution: execution})
}

func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	r.send(ctx, metricEvent{typ: eventStepEnd, stepExecution: execution})
}

func (r *AsyncMetricRecorder) RecordItemRead(ctx context.Context, stepName string, count int) {
	r.send(ctx, metricEvent{typ: eventItemRead, stepName: stepName, count: count})
}

func (r *AsyncMetricRecorder) RecordItemFilter(ctx context.Context, stepName string, count int) {
	r.send(ctx, metricEvent{typ: eventItemFilter, stepName: stepName, count: count})
}

func (r *AsyncMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.send(ctx, metricEvent{typ: eventItemWrite, stepName: stepName, count: count})
}

func (r *AsyncMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{typ: eventChunkCommit, stepName: stepName})
}

func (r *AsyncMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{typ: eventChunkRollback, stepName: stepName})
}
