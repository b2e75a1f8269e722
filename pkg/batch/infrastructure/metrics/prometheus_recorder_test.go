package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

func newStepContext() (context.Context, *model.JobExecution, *model.StepExecution) {
	je := model.NewJobExecution("instance-1", "savePersonJob", model.NewJobParameters())
	se := model.NewStepExecution(model.NewID(), je, "savePersonStep")
	je.AddStepExecution(se)
	return port.WithStepExecution(context.Background(), se), je, se
}

func TestPrometheusRecorder_ChunkCounters(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx, _, _ := newStepContext()

	r.RecordItemRead(ctx, "savePersonStep", 10)
	r.RecordItemFilter(ctx, "savePersonStep", 7)
	r.RecordItemWrite(ctx, "savePersonStep", 3)
	r.RecordChunkCommit(ctx, "savePersonStep")
	r.RecordChunkRollback(ctx, "savePersonStep")
	r.RecordItemRead(context.Background(), "orphanStep", 1)

	assert.Equal(t, 10.0, testutil.ToFloat64(r.stepReadCount.WithLabelValues("savePersonJob", "savePersonStep")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.stepFilterCount.WithLabelValues("savePersonJob", "savePersonStep")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.stepWriteCount.WithLabelValues("savePersonJob", "savePersonStep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepCommitCount.WithLabelValues("savePersonJob", "savePersonStep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepRollbackCount.WithLabelValues("savePersonJob", "savePersonStep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepReadCount.WithLabelValues(unknownJob, "orphanStep")))
}

func TestPrometheusRecorder_StatusAndScrape(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx, je, se := newStepContext()

	je.MarkAsStarted()
	se.MarkAsStarted()
	time.Sleep(time.Millisecond)
	se.MarkAsCompleted()
	je.MarkAsCompleted()
	r.RecordStepEnd(ctx, se)
	r.RecordJobEnd(ctx, je)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("savePersonJob", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepStatusCounter.WithLabelValues("savePersonJob", "savePersonStep", "COMPLETED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.jobDurationSeconds))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `batch_job_status_total{job_name="savePersonJob",status="COMPLETED"} 1`), body)
}
