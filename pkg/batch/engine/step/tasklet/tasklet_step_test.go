package tasklet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	tasklet "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	inmemory "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
)

// windowTasklet consumes items in windows of size, using RestartOffset as its cursor.
type windowTasklet struct {
	items  []string
	size   int
	seen   [][]string
	failAt int
}

func (w *windowTasklet) Execute(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	if _, ok := tx.FromContext(ctx); !ok {
		return port.RepeatStatusFinished, errors.New("no transaction in context")
	}
	from := se.RestartOffset
	to := min(from+w.size, len(w.items))
	se.ReadCount += to - from
	if len(w.seen)+1 == w.failAt {
		return port.RepeatStatusFinished, errors.New("window failed")
	}
	w.seen = append(w.seen, w.items[from:to])
	if to >= len(w.items) {
		return port.RepeatStatusFinished, nil
	}
	return port.RepeatStatusContinuable, nil
}

type stepEvents struct {
	before, after int
	status        model.JobStatus
}

func (s *stepEvents) BeforeStep(context.Context, *model.StepExecution) { s.before++ }
func (s *stepEvents) AfterStep(_ context.Context, se *model.StepExecution) {
	s.after++
	s.status = se.Status
}

func setup(t *testing.T) (*inmemory.InMemoryJobRepository, *model.JobExecution, *model.StepExecution) {
	t.Helper()
	repo := inmemory.NewInMemoryJobRepository()
	je := model.NewJobExecution("instance-1", "chunkProcessingJob", model.NewJobParameters())
	se := model.NewStepExecution(model.NewID(), je, "taskBaseStep")
	je.AddStepExecution(se)
	require.NoError(t, repo.SaveStepExecution(context.Background(), se))
	return repo, je, se
}

func TestTaskletStep_RepeatsUntilFinished(t *testing.T) {
	repo, je, se := setup(t)
	items := make([]string, 25)
	for i := range items {
		items[i] = "item"
	}
	w := &windowTasklet{items: items, size: 10}
	events := &stepEvents{}
	step := tasklet.NewTaskletStep("taskBaseStep", w, repo, nil, events)

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	require.Len(t, w.seen, 3)
	assert.Len(t, w.seen[0], 10)
	assert.Len(t, w.seen[2], 5)
	assert.Equal(t, 3, se.CommitCount)
	assert.Equal(t, 25, se.ReadCount)
	assert.Equal(t, 1, events.before)
	assert.Equal(t, 1, events.after)
	assert.Equal(t, model.BatchStatusCompleted, events.status)
}

func TestTaskletStep_FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo, je, se := setup(t)
	w := &windowTasklet{items: make([]string, 30), size: 10, failAt: 2}
	step := tasklet.NewTaskletStep("taskBaseStep", w, repo, tx.NewSQLTransactionManager(db))

	err = step.Execute(context.Background(), je, se)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window failed")
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 1, se.CommitCount)
	assert.Equal(t, 1, se.RollbackCount)
	assert.Equal(t, 10, se.ReadCount, "counters moved by the failed iteration are undone")
	assert.Equal(t, 10, se.RestartOffset)
	assert.NoError(t, mock.ExpectationsWereMet())

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
}

func TestTaskletStep_CancelledBeforeFirstIteration(t *testing.T) {
	repo, je, se := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &windowTasklet{items: make([]string, 5), size: 5}
	step := tasklet.NewTaskletStep("taskBaseStep", w, repo, nil)

	assert.ErrorIs(t, step.Execute(ctx, je, se), context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Empty(t, w.seen)
}

func TestTaskletStep_RelaunchResumesAtRestartOffset(t *testing.T) {
	repo, je, se := setup(t)
	items := make([]string, 30)
	for i := range items {
		items[i] = string(rune('a' + i%26))
	}
	first := &windowTasklet{items: items, size: 10, failAt: 3}

	require.Error(t, tasklet.NewTaskletStep("taskBaseStep", first, repo, nil).Execute(context.Background(), je, se))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 20, se.RestartOffset)

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	relaunch := model.NewJobExecution("instance-1", "chunkProcessingJob", model.NewJobParameters())
	resumed := stored.CopyForRestart(relaunch.ID)
	relaunch.AddStepExecution(resumed)
	require.NoError(t, repo.SaveStepExecution(context.Background(), resumed))
	assert.Equal(t, 0, resumed.ReadCount)

	second := &windowTasklet{items: items, size: 10}
	require.NoError(t, tasklet.NewTaskletStep("taskBaseStep", second, repo, nil).Execute(context.Background(), relaunch, resumed))

	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	require.Len(t, second.seen, 1)
	assert.Equal(t, items[20:30], second.seen[0])
	assert.Equal(t, 10, resumed.ReadCount)
	assert.Equal(t, 30, resumed.RestartOffset)
}
