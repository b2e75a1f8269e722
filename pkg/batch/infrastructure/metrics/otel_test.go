package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

func TestOTelTracer_JobAndStepSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOTelTracer(tp.Tracer("test"))

	je := model.NewJobExecution("instance-1", "itemWriterJob", model.NewJobParameters())
	se := model.NewStepExecution(model.NewID(), je, "csvItemWriterStep")
	je.AddStepExecution(se)

	jobCtx, endJob := tracer.StartJobSpan(context.Background(), je)
	stepCtx, endStep := tracer.StartStepSpan(jobCtx, se)
	tracer.RecordEvent(stepCtx, "chunk.commit", map[string]interface{}{"items": 5, "offset": int64(5)})
	se.ApplyChunk(5, 0, 5, 0)
	tracer.RecordError(stepCtx, "csvItemWriterStep", errors.New("disk full"))
	se.MarkAsFailed(errors.New("disk full"))
	endStep()
	je.MarkAsFailed(errors.New("disk full"))
	endJob()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	step, job := spans[0], spans[1]

	assert.Equal(t, "step csvItemWriterStep", step.Name())
	assert.Equal(t, "job itemWriterJob", job.Name())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())
	assert.Equal(t, codes.Error, step.Status().Code)
	assert.Contains(t, step.Attributes(), attribute.Int("step.write_count", 5))
	assert.Contains(t, job.Attributes(), attribute.String("job.status", "FAILED"))

	var names []string
	for _, ev := range step.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"chunk.commit", "exception"}, names)
}

func TestOTelRecorder_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelRecorder(mp.Meter("test"))
	require.NoError(t, err)

	ctx, je, se := newStepContext()
	r.RecordItemRead(ctx, "savePersonStep", 10)
	r.RecordItemWrite(ctx, "savePersonStep", 3)
	r.RecordItemFilter(ctx, "savePersonStep", 7)
	r.RecordChunkCommit(ctx, "savePersonStep")
	se.MarkAsCompleted()
	r.RecordStepEnd(ctx, se)
	je.MarkAsCompleted()
	r.RecordJobEnd(ctx, je)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	histograms := 0
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		case metricdata.Histogram[float64]:
			histograms++
		}
	}
	assert.Equal(t, int64(10), sums["batch.step.items.read"])
	assert.Equal(t, int64(3), sums["batch.step.items.written"])
	assert.Equal(t, int64(7), sums["batch.step.items.filtered"])
	assert.Equal(t, int64(1), sums["batch.step.chunk.commits"])
	assert.Equal(t, 2, histograms)
}
