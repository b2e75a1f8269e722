package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	item "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	dedup "github.com/tigerroll/chunkbatch/pkg/batch/component/processor/dedup"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	usecase "github.com/tigerroll/chunkbatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	runner "github.com/tigerroll/chunkbatch/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	incrementer "github.com/tigerroll/chunkbatch/pkg/batch/core/support/incrementer"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	inmemory "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
)

type person struct {
	ID   int
	Name string
}

// sink collects written items and can be armed to fail on its n-th write call.
type sink struct {
	mu     sync.Mutex
	items  []*person
	calls  int
	failOn int
}

func (s *sink) Open(context.Context, model.ExecutionContext) error { return nil }

func (s *sink) Write(_ context.Context, _ tx.Tx, items []*person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == s.failOn {
		s.failOn = 0
		return errors.New("disk full")
	}
	s.items = append(s.items, items...)
	return nil
}

func (s *sink) Close(context.Context) error { return nil }

func people(n int, names ...string) []*person {
	out := make([]*person, n)
	for i := range out {
		out[i] = &person{ID: i + 1, Name: names[i%len(names)]}
	}
	return out
}

type fixture struct {
	repo     *inmemory.InMemoryJobRepository
	registry *support.JobRegistry
	launcher *usecase.SimpleJobLauncher
	operator *usecase.DefaultJobOperator
}

func newFixture() *fixture {
	repo := inmemory.NewInMemoryJobRepository()
	registry := support.NewJobRegistry(support.JobRegistryParams{
		Repo:           repo,
		MetricRecorder: metrics.NewNoOpMetricRecorder(),
		Tracer:         metrics.NewNoOpTracer(),
	})
	launcher := usecase.NewSimpleJobLauncher(repo, registry, runner.NewSimpleJobRunner(repo))
	return &fixture{
		repo:     repo,
		registry: registry,
		launcher: launcher,
		operator: usecase.NewDefaultJobOperator(repo, launcher),
	}
}

// registerPersonJob registers a one-step chunk job over source with duplicate
// suppression by name, writing into out.
func (f *fixture) registerPersonJob(t *testing.T, name string, source []*person, out *sink, opts ...support.Option) {
	t.Helper()
	err := f.registry.Register(name, func(_ context.Context, params model.JobParameters) ([]port.Step, error) {
		cfg, err := config.NewStepConfig(params, config.DefaultChunkSize)
		if err != nil {
			return nil, err
		}
		processor := dedup.NewDuplicateSuppressingProcessor(func(p *person) string { return p.Name }, cfg.AllowDuplicate)
		step := itemstep.NewChunkStep[*person, *person](
			"personStep",
			item.NewListItemReader(source),
			processor,
			out,
			cfg.ChunkSize,
			f.repo,
			nil,
		)
		return []port.Step{step}, nil
	}, opts...)
	require.NoError(t, err)
}

func params(kv ...interface{}) model.JobParameters {
	p := model.NewJobParameters()
	for i := 0; i+1 < len(kv); i += 2 {
		p.Put(kv[i].(string), kv[i+1])
	}
	return p
}

func TestLaunch_AllowDuplicateWritesEverything(t *testing.T) {
	f := newFixture()
	out := &sink{}
	f.registerPersonJob(t, "savePersonJob", people(100, "Alice", "Bob", "Carol"), out)

	je, err := f.launcher.Launch(context.Background(), "savePersonJob", params("allowDuplicate", "true"))
	require.NoError(t, err)

	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	se := je.StepExecution("personStep")
	require.NotNil(t, se)
	assert.Equal(t, 100, se.ReadCount)
	assert.Equal(t, 100, se.WriteCount)
	assert.Equal(t, 0, se.FilterCount)
	assert.Equal(t, 10, se.CommitCount)
	assert.Len(t, out.items, 100)
}

func TestLaunch_DuplicatesFiltered(t *testing.T) {
	f := newFixture()
	out := &sink{}
	f.registerPersonJob(t, "savePersonJob", people(100, "Alice", "Bob", "Carol"), out)

	je, err := f.launcher.Launch(context.Background(), "savePersonJob", params("allow_duplicate", false))
	require.NoError(t, err)

	se := je.StepExecution("personStep")
	require.NotNil(t, se)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, 3, se.WriteCount)
	assert.Equal(t, 97, se.FilterCount)
	assert.Equal(t, se.ReadCount, se.WriteCount+se.FilterCount)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, []string{out.items[0].Name, out.items[1].Name, out.items[2].Name})
}

func TestLaunch_RestartResumesAtOffset(t *testing.T) {
	f := newFixture()
	out := &sink{failOn: 2}
	f.registerPersonJob(t, "restartJob", people(15, "a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o"), out)
	p := params("chunkSize", 5)

	first, err := f.launcher.Launch(context.Background(), "restartJob", p)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, first.Status)
	failed := first.StepExecution("personStep")
	assert.Equal(t, model.BatchStatusFailed, failed.Status)
	assert.Equal(t, 5, failed.WriteCount)
	assert.Equal(t, 5, failed.RestartOffset)
	assert.Equal(t, 1, failed.RollbackCount)

	second, err := f.launcher.Launch(context.Background(), "restartJob", p)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, first.JobInstanceID, second.JobInstanceID)
	assert.Equal(t, 1, second.RestartCount)

	resumed := second.StepExecution("personStep")
	assert.Equal(t, 10, resumed.WriteCount)
	assert.Equal(t, 15, resumed.RestartOffset)
	assert.Equal(t, 15, failed.WriteCount+resumed.WriteCount)

	require.Len(t, out.items, 15)
	for i, p := range out.items {
		assert.Equal(t, i+1, p.ID, "each item written exactly once, in order")
	}

	executions, err := f.repo.FindJobExecutionsByJobInstance(context.Background(), first.JobInstanceID)
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	_, err = f.launcher.Launch(context.Background(), "restartJob", p)
	assert.ErrorIs(t, err, usecase.ErrJobInstanceAlreadyComplete)
}

func TestLaunch_CompletedStepsAreSkippedOnRestart(t *testing.T) {
	f := newFixture()
	first, second := &sink{}, &sink{failOn: 1}
	err := f.registry.Register("twoStepJob", func(_ context.Context, _ model.JobParameters) ([]port.Step, error) {
		return []port.Step{
			itemstep.NewChunkStep[*person, *person]("firstStep", item.NewListItemReader(people(3, "x")), nil, first, 10, f.repo, nil),
			itemstep.NewChunkStep[*person, *person]("secondStep", item.NewListItemReader(people(3, "y")), nil, second, 10, f.repo, nil),
		}, nil
	})
	require.NoError(t, err)

	failed, err := f.launcher.Launch(context.Background(), "twoStepJob", model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, failed.Status)

	restarted, err := f.launcher.Launch(context.Background(), "twoStepJob", model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, restarted.Status)
	assert.Len(t, first.items, 3, "completed step not re-run")
	assert.Len(t, second.items, 3)
	assert.Equal(t, model.BatchStatusCompleted, restarted.StepExecution("firstStep").Status)
	assert.Equal(t, 3, restarted.StepExecution("firstStep").WriteCount)
}

func TestLaunch_IncrementerCreatesNewInstances(t *testing.T) {
	f := newFixture()
	out := &sink{}
	f.registerPersonJob(t, "savePersonJob", people(100, "Alice", "Bob", "Carol"), out,
		support.WithIncrementer(incrementer.NewRunIDIncrementer("")))

	first, err := f.launcher.Launch(context.Background(), "savePersonJob", params("allowDuplicate", false))
	require.NoError(t, err)
	second, err := f.launcher.Launch(context.Background(), "savePersonJob", params("allowDuplicate", true))
	require.NoError(t, err)

	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	runID, _ := second.Parameters.GetInt("run.id")
	assert.Equal(t, 2, runID)
	assert.Equal(t, 3, first.StepExecution("personStep").WriteCount)
	assert.Equal(t, 100, second.StepExecution("personStep").WriteCount)
}

func TestLaunch_IncrementerReusesRestartableInstance(t *testing.T) {
	f := newFixture()
	out := &sink{failOn: 1}
	f.registerPersonJob(t, "savePersonJob", people(10, "Alice", "Bob"), out,
		support.WithIncrementer(incrementer.NewRunIDIncrementer("")))

	failed, err := f.launcher.Launch(context.Background(), "savePersonJob", model.NewJobParameters())
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusFailed, failed.Status)

	restarted, err := f.launcher.Launch(context.Background(), "savePersonJob", model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, failed.JobInstanceID, restarted.JobInstanceID)
	assert.Equal(t, model.BatchStatusCompleted, restarted.Status)
	runID, _ := restarted.Parameters.GetInt("run.id")
	assert.Equal(t, 1, runID)
}

func TestLaunch_UnknownJobAndBadParameters(t *testing.T) {
	f := newFixture()
	f.registerPersonJob(t, "savePersonJob", people(3, "a"), &sink{})

	_, err := f.launcher.Launch(context.Background(), "nope", model.NewJobParameters())
	assert.ErrorContains(t, err, "not registered")

	_, err = f.launcher.Launch(context.Background(), "savePersonJob", params("chunkSize", 0))
	assert.ErrorContains(t, err, "chunkSize must be positive")
	names, err := f.repo.GetJobNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names, "nothing persisted for a job that could not be built")
}

func TestOperator_AbandonBlocksRestart(t *testing.T) {
	f := newFixture()
	f.registerPersonJob(t, "savePersonJob", people(5, "a", "b", "c", "d", "e"), &sink{failOn: 1})

	failed, err := f.launcher.Launch(context.Background(), "savePersonJob", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, f.operator.Abandon(context.Background(), failed.ID))

	_, err = f.operator.Restart(context.Background(), failed.ID)
	assert.Error(t, err)
	_, err = f.launcher.Launch(context.Background(), "savePersonJob", model.NewJobParameters())
	assert.ErrorIs(t, err, usecase.ErrJobInstanceNotRestartable)

	err = f.operator.Stop(context.Background(), failed.ID)
	assert.ErrorContains(t, err, "already finished")
}

func TestOperator_Restart(t *testing.T) {
	f := newFixture()
	out := &sink{failOn: 1}
	f.registerPersonJob(t, "savePersonJob", people(4, "a", "b", "c", "d"), out)

	failed, err := f.launcher.Launch(context.Background(), "savePersonJob", model.NewJobParameters())
	require.NoError(t, err)

	restarted, err := f.operator.Restart(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, restarted.Status)
	assert.Equal(t, failed.JobInstanceID, restarted.JobInstanceID)
}
