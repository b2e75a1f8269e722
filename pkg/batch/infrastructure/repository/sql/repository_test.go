package sql_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration/filesystem"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	sqlrepo "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

func newSQLiteRepository(t *testing.T) (*sqlrepo.GormJobRepository, tx.TransactionManager) {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "metadata.db"),
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	}
	require.NoError(t, sqlrepo.InitializeSchema(context.Background(), cfg, filesystem.FrameworkMigrationsFS()))

	db, err := gormadapter.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gormadapter.Close(db) })
	return sqlrepo.NewGormJobRepository(db), gormadapter.NewGormTransactionManager(db)
}

func saveExecution(t *testing.T, repo repository.JobRepository, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution) {
	t.Helper()
	ctx := context.Background()
	instance := model.NewJobInstance(jobName, params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	je := model.NewJobExecution(instance.ID, jobName, params)
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	return instance, je
}

func TestGormJobRepository_JobInstanceLookup(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()

	params := model.NewJobParameters()
	params.Put("run.id", 1)
	params.Put("chunkSize", 5)
	instance, _ := saveExecution(t, repo, "savePersonJob", params)

	// Numbers come back from JSON as float64 and must still match.
	lookup := model.NewJobParameters()
	lookup.Put("run.id", int64(1))
	lookup.Put("chunkSize", 5.0)
	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "savePersonJob", lookup)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, found.ID)

	other := model.NewJobParameters()
	other.Put("run.id", 2)
	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "savePersonJob", other)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	second, _ := saveExecution(t, repo, "savePersonJob", other)
	latest, err := repo.FindLatestJobInstance(ctx, "savePersonJob")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.FindLatestJobInstance(ctx, "unknownJob")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	saveExecution(t, repo, "helloJob", model.NewJobParameters())
	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"helloJob", "savePersonJob"}, names)
}

func TestGormJobRepository_StepExecutionRoundTrip(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	_, je := saveExecution(t, repo, "itemWriterJob", model.NewJobParameters())

	se := model.NewStepExecution(model.NewID(), je, "csvItemWriterStep")
	je.AddStepExecution(se)
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	se.MarkAsStarted()
	se.ApplyChunk(10, 2, 8, 0)
	se.ExecutionContext.Put("csvItemWriter.position", 512)
	require.NoError(t, repo.UpdateStepExecution(ctx, se))
	assert.Equal(t, 1, se.Version)

	stored, err := repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.ReadCount)
	assert.Equal(t, 8, stored.WriteCount)
	assert.Equal(t, 2, stored.FilterCount)
	assert.Equal(t, 10, stored.RestartOffset)
	assert.Equal(t, model.BatchStatusStarted, stored.Status)
	pos, ok := stored.ExecutionContext.GetInt("csvItemWriter.position")
	assert.True(t, ok)
	assert.Equal(t, 512, pos)

	found, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	require.Len(t, found.StepExecutions, 1)
	assert.Equal(t, "csvItemWriterStep", found.StepExecutions[0].StepName)
	assert.Same(t, found, found.StepExecutions[0].JobExecution)
}

func TestGormJobRepository_OptimisticLocking(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	_, je := saveExecution(t, repo, "helloJob", model.NewJobParameters())

	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)

	je.MarkAsStarted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	stale.MarkAsStarted()
	err = repo.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	missing := model.NewJobExecution(model.NewID(), "helloJob", model.NewJobParameters())
	err = repo.UpdateJobExecution(ctx, missing)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	assert.True(t, sqlrepo.IsNotFound(err))

	missingStep := model.NewStepExecution(model.NewID(), je, "nope")
	assert.ErrorIs(t, repo.UpdateStepExecution(ctx, missingStep), repository.ErrStepExecutionNotFound)
}

func TestGormJobRepository_LatestExecutionAndFailures(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	instance, first := saveExecution(t, repo, "chunkProcessingJob", model.NewJobParameters())

	first.MarkAsStarted()
	first.MarkAsFailed(errors.New("writer rejected chunk"))
	require.NoError(t, repo.UpdateJobExecution(ctx, first))

	second := model.NewJobExecution(instance.ID, instance.JobName, instance.Parameters)
	second.RestartCount = 1
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	latest, err := repo.FindLatestJobExecution(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 1, latest.RestartCount)

	all, err := repo.FindJobExecutionsByJobInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.BatchStatusFailed, all[0].Status)
	assert.Equal(t, model.FailureList{"writer rejected chunk"}, all[0].Failures)
	assert.NotNil(t, all[0].EndTime)

	_, err = repo.FindLatestJobExecution(ctx, model.NewID())
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestGormJobRepository_JoinsContextTransaction(t *testing.T) {
	repo, txManager := newSQLiteRepository(t)
	ctx := context.Background()
	_, je := saveExecution(t, repo, "helloJob", model.NewJobParameters())

	txn, err := txManager.Begin(ctx)
	require.NoError(t, err)
	se := model.NewStepExecution(model.NewID(), je, "helloStep")
	require.NoError(t, repo.SaveStepExecution(tx.WithTx(ctx, txn), se))
	require.NoError(t, txManager.Rollback(txn))

	_, err = repo.FindStepExecutionByID(ctx, se.ID)
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)
}
