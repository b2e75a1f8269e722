package item_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compitem "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	item "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	inmemory "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// sinkWriter collects written items and records the last written value in the
// execution context. failOnWrite is the 1-based Write call that fails.
type sinkWriter struct {
	ec          model.ExecutionContext
	written     []int
	calls       int
	failOnWrite int
}

func (w *sinkWriter) Open(_ context.Context, ec model.ExecutionContext) error {
	w.ec = ec
	return nil
}

func (w *sinkWriter) Write(_ context.Context, _ tx.Tx, items []int) error {
	w.calls++
	w.ec.Put("sink.last", items[len(items)-1])
	if w.calls == w.failOnWrite {
		return errors.New("disk full")
	}
	w.written = append(w.written, items...)
	return nil
}

func (w *sinkWriter) Close(context.Context) error { return nil }

type chunkEvents struct {
	before, after, errors int
}

func (c *chunkEvents) BeforeChunk(context.Context, *model.StepExecution) { c.before++ }
func (c *chunkEvents) AfterChunk(context.Context, *model.StepExecution)  { c.after++ }
func (c *chunkEvents) AfterChunkError(context.Context, *model.StepExecution, error) {
	c.errors++
}

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

type fixture struct {
	repo *inmemory.InMemoryJobRepository
	je   *model.JobExecution
}

func newFixture() *fixture {
	return &fixture{
		repo: inmemory.NewInMemoryJobRepository(),
		je:   model.NewJobExecution("instance-1", "chunkProcessingJob", model.NewJobParameters()),
	}
}

func (f *fixture) newStepExecution(t *testing.T, name string) *model.StepExecution {
	t.Helper()
	se := model.NewStepExecution(model.NewID(), f.je, name)
	f.je.AddStepExecution(se)
	require.NoError(t, f.repo.SaveStepExecution(context.Background(), se))
	return se
}

func (f *fixture) restart(t *testing.T, prev *model.StepExecution) *model.StepExecution {
	t.Helper()
	f.je = model.NewJobExecution("instance-1", "chunkProcessingJob", model.NewJobParameters())
	se := prev.CopyForRestart(f.je.ID)
	f.je.AddStepExecution(se)
	require.NoError(t, f.repo.SaveStepExecution(context.Background(), se))
	return se
}

func TestChunkStep_WritesEveryChunk(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "chunkBaseStep")
	sink := &sinkWriter{}
	step := item.NewChunkStep[int, int]("chunkBaseStep", compitem.NewListItemReader(numbers(100)), nil, sink, 10, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, se))

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, 100, se.ReadCount)
	assert.Equal(t, 100, se.WriteCount)
	assert.Equal(t, 0, se.FilterCount)
	assert.Equal(t, 10, se.CommitCount)
	assert.Equal(t, 100, se.RestartOffset)
	assert.Equal(t, numbers(100), sink.written)

	stored, err := f.repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
}

func TestChunkStep_FilteredItemsAreCountedNotWritten(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "evenStep")
	sink := &sinkWriter{}
	evens := compitem.FunctionItemProcessor[int, *int](func(_ context.Context, n int) (*int, error) {
		if n%2 != 0 {
			return nil, nil
		}
		return &n, nil
	})
	deref := &derefWriter{sink: sink}
	step := item.NewChunkStep[int, *int]("evenStep", compitem.NewListItemReader(numbers(25)), evens, deref, 10, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, se))

	assert.Equal(t, 25, se.ReadCount)
	assert.Equal(t, 12, se.WriteCount)
	assert.Equal(t, 13, se.FilterCount)
	assert.Equal(t, se.ReadCount, se.WriteCount+se.FilterCount)
	assert.Equal(t, 3, se.CommitCount)
}

type derefWriter struct {
	sink *sinkWriter
}

func (w *derefWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	return w.sink.Open(ctx, ec)
}

func (w *derefWriter) Write(ctx context.Context, t tx.Tx, items []*int) error {
	vals := make([]int, len(items))
	for i, p := range items {
		vals[i] = *p
	}
	return w.sink.Write(ctx, t, vals)
}

func (w *derefWriter) Close(ctx context.Context) error { return w.sink.Close(ctx) }

func TestChunkStep_AllFilteredNeverCallsWriter(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "dropStep")
	sink := &sinkWriter{}
	drop := compitem.FunctionItemProcessor[int, *int](func(context.Context, int) (*int, error) { return nil, nil })
	step := item.NewChunkStep[int, *int]("dropStep", compitem.NewListItemReader(numbers(7)), drop, &derefWriter{sink: sink}, 5, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, se))

	assert.Equal(t, 0, sink.calls)
	assert.Equal(t, 7, se.ReadCount)
	assert.Equal(t, 7, se.FilterCount)
	assert.Equal(t, 0, se.WriteCount)
	assert.Equal(t, 2, se.CommitCount)
}

func TestChunkStep_ErrItemFilteredForValueOutput(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "oddStep")
	sink := &sinkWriter{}
	odds := compitem.FunctionItemProcessor[int, int](func(_ context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, port.ErrItemFiltered
		}
		return n, nil
	})
	step := item.NewChunkStep[int, int]("oddStep", compitem.NewListItemReader(numbers(10)), odds, sink, 5, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, se))

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, 5, se.FilterCount)
	for _, n := range sink.written {
		assert.Equal(t, 1, n%2)
	}
}

type batchSink struct {
	batches [][]int
}

func (w *batchSink) Open(context.Context, model.ExecutionContext) error { return nil }

func (w *batchSink) Write(_ context.Context, _ tx.Tx, items [][]int) error {
	w.batches = append(w.batches, items...)
	return nil
}

func (w *batchSink) Close(context.Context) error { return nil }

func TestChunkStep_NilSliceOutputIsWritten(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "divisorStep")
	sink := &batchSink{}
	// Primes above 1 have no divisors other than 1 and themselves: a nil slice.
	divisors := compitem.FunctionItemProcessor[int, []int](func(_ context.Context, n int) ([]int, error) {
		var out []int
		for d := 2; d < n; d++ {
			if n%d == 0 {
				out = append(out, d)
			}
		}
		return out, nil
	})
	step := item.NewChunkStep[int, []int]("divisorStep", compitem.NewListItemReader([]int{4, 5, 6, 7}), divisors, sink, 10, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, se))
	assert.Equal(t, 4, se.WriteCount)
	assert.Equal(t, 0, se.FilterCount)
	require.Len(t, sink.batches, 4)
	assert.Nil(t, sink.batches[1])
	assert.Equal(t, []int{2, 3}, sink.batches[2])
}

func TestChunkStep_EmptySource(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "emptyStep")
	events := &chunkEvents{}
	step := item.NewChunkStep[int, int]("emptyStep", compitem.NewListItemReader[int](nil), nil, &sinkWriter{}, 10, f.repo, nil)
	step.RegisterChunkListener(events)

	require.NoError(t, step.Execute(context.Background(), f.je, se))

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, 0, se.ReadCount)
	assert.Equal(t, 0, se.CommitCount)
	assert.Equal(t, 1, events.before)
	assert.Equal(t, 1, events.after)
}

func TestChunkStep_WriteFailureRollsBackChunkAndResumes(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "chunkBaseStep")
	sink := &sinkWriter{failOnWrite: 2}
	events := &chunkEvents{}
	step := item.NewChunkStep[int, int]("chunkBaseStep", compitem.NewListItemReader(numbers(15)), nil, sink, 5, f.repo, nil)
	step.RegisterChunkListener(events)

	err := step.Execute(context.Background(), f.je, se)
	require.Error(t, err)
	assert.True(t, exception.IsWriteError(err))

	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 5, se.ReadCount)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, 5, se.RestartOffset)
	assert.Equal(t, 1, se.CommitCount)
	assert.Equal(t, 1, se.RollbackCount)
	assert.Equal(t, 2, events.before)
	assert.Equal(t, 1, events.after)
	assert.Equal(t, 1, events.errors)
	last, ok := se.ExecutionContext.GetInt("sink.last")
	require.True(t, ok)
	assert.Equal(t, 5, last, "execution context must not keep entries from the rolled back chunk")

	resumed := f.restart(t, se)
	assert.Equal(t, 0, resumed.WriteCount)
	sink.failOnWrite = 0
	step = item.NewChunkStep[int, int]("chunkBaseStep", compitem.NewListItemReader(numbers(15)), nil, sink, 5, f.repo, nil)

	require.NoError(t, step.Execute(context.Background(), f.je, resumed))
	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	assert.Equal(t, 10, resumed.WriteCount)
	assert.Equal(t, 15, resumed.RestartOffset)
	assert.Equal(t, 15, se.WriteCount+resumed.WriteCount)
	assert.Equal(t, numbers(15), sink.written)
}

func TestChunkStep_ProcessFailure(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "parseStep")
	atoi := compitem.FunctionItemProcessor[string, int](func(_ context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	})
	reader := compitem.NewListItemReader([]string{"1", "2", "x", "4"})
	step := item.NewChunkStep[string, int]("parseStep", reader, atoi, &sinkWriter{}, 2, f.repo, nil)

	err := step.Execute(context.Background(), f.je, se)
	require.Error(t, err)
	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 2, se.WriteCount)
	assert.Equal(t, 2, se.RestartOffset)
	assert.NotEmpty(t, se.Failures)
}

func TestChunkStep_CancelledContextStops(t *testing.T) {
	f := newFixture()
	se := f.newStepExecution(t, "chunkBaseStep")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := item.NewChunkStep[int, int]("chunkBaseStep", compitem.NewListItemReader(numbers(10)), nil, &sinkWriter{}, 5, f.repo, nil)
	err := step.Execute(ctx, f.je, se)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, 0, se.WriteCount)
}

func TestChunkStep_DefaultChunkSize(t *testing.T) {
	step := item.NewChunkStep[int, int]("s", compitem.NewListItemReader(numbers(1)), nil, &sinkWriter{}, 0, inmemory.NewInMemoryJobRepository(), nil)
	assert.Equal(t, item.DefaultChunkSize, step.ChunkSize())
}

func TestChunkStep_SQLTransactionPerChunk(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newFixture()
	se := f.newStepExecution(t, "jdbcStep")
	sink := &sinkWriter{failOnWrite: 2}
	step := item.NewChunkStep[int, int]("jdbcStep", compitem.NewListItemReader(numbers(6)), nil, sink, 3, f.repo, tx.NewSQLTransactionManager(db))

	require.Error(t, step.Execute(context.Background(), f.je, se))
	assert.Equal(t, 3, se.WriteCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var _ port.ItemWriter[int] = (*sinkWriter)(nil)
