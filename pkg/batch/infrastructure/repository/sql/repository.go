// Package sql implements repository.JobRepository on a relational database through GORM.
// The tables are created by the framework migrations.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// GormJobRepository implements repository.JobRepository.
type GormJobRepository struct {
	db *gorm.DB
}

var _ repository.JobRepository = (*GormJobRepository)(nil)

// NewGormJobRepository creates a repository over db.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// executor returns the GORM session of the transaction carried by ctx, if any,
// so metadata written by a tasklet commits with its work. Otherwise it returns
// the plain connection.
func (r *GormJobRepository) executor(ctx context.Context) *gorm.DB {
	if t, ok := tx.FromContext(ctx); ok {
		if db, ok := gormadapter.DB(t); ok {
			return db.WithContext(ctx)
		}
	}
	return r.db.WithContext(ctx)
}

// --- JobInstance ---

func (r *GormJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "GormJobRepository.SaveJobInstance"
	instance.Version = 0
	if err := r.executor(ctx).Create(fromDomainJobInstance(instance)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err, false, true)
	}
	return nil
}

func (r *GormJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "GormJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to calculate JobParameters hash", err, false, false)
	}

	var entities []JobInstanceEntity
	if err := r.executor(ctx).
		Where("job_name = ? AND parameters_hash = ?", jobName, hash).
		Order("create_time").
		Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to find JobInstance", err, false, true)
	}

	// The hash narrows the search; equality decides.
	for i := range entities {
		instance := toDomainJobInstance(&entities[i])
		if instance.Parameters.Equal(params) {
			return instance, nil
		}
		logger.Warnf("%s: JobInstance (ID: %s) hash matched but parameters mismatched. Possible hash collision.", op, instance.ID)
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *GormJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	const op = "GormJobRepository.FindLatestJobInstance"
	var entities []JobInstanceEntity
	if err := r.executor(ctx).
		Where("job_name = ?", jobName).
		Order("create_time DESC").
		Limit(1).
		Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to find latest JobInstance", err, false, true)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entities[0]), nil
}

func (r *GormJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	const op = "GormJobRepository.GetJobNames"
	var names []string
	if err := r.executor(ctx).
		Model(&JobInstanceEntity{}).
		Distinct().
		Order("job_name").
		Pluck("job_name", &names).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to list job names", err, false, true)
	}
	return names, nil
}

// --- JobExecution ---

func (r *GormJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "GormJobRepository.SaveJobExecution"
	jobExecution.Version = 0
	if err := r.executor(ctx).Create(fromDomainJobExecution(jobExecution)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err, false, true)
	}
	return nil
}

func (r *GormJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "GormJobRepository.UpdateJobExecution"
	original := jobExecution.Version
	jobExecution.LastUpdated = time.Now()
	entity := fromDomainJobExecution(jobExecution)
	entity.Version = original + 1

	res := r.executor(ctx).
		Model(entity).
		Where("version = ?", original).
		Select("*").
		Updates(entity)
	if res.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), res.Error, false, true)
	}
	if res.RowsAffected == 0 {
		return r.missingOrStale(ctx, &JobExecutionEntity{}, jobExecution.ID, original, repository.ErrJobExecutionNotFound)
	}
	jobExecution.Version = original + 1
	return nil
}

func (r *GormJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "GormJobRepository.FindJobExecutionByID"
	var entities []JobExecutionEntity
	if err := r.executor(ctx).Where("id = ?", executionID).Limit(1).Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecution (ID: %s)", executionID), err, false, true)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withSteps(ctx, toDomainJobExecution(&entities[0]))
}

func (r *GormJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	const op = "GormJobRepository.FindLatestJobExecution"
	var entities []JobExecutionEntity
	if err := r.executor(ctx).
		Where("job_instance_id = ?", jobInstanceID).
		Order("create_time DESC").
		Limit(1).
		Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to find latest JobExecution", err, false, true)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withSteps(ctx, toDomainJobExecution(&entities[0]))
}

func (r *GormJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	const op = "GormJobRepository.FindJobExecutionsByJobInstance"
	var entities []JobExecutionEntity
	if err := r.executor(ctx).
		Where("job_instance_id = ?", jobInstanceID).
		Order("create_time").
		Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to find JobExecutions", err, false, true)
	}
	out := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := r.withSteps(ctx, toDomainJobExecution(&entities[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, je)
	}
	return out, nil
}

func (r *GormJobRepository) withSteps(ctx context.Context, je *model.JobExecution) (*model.JobExecution, error) {
	steps, err := r.FindStepExecutionsByJobExecutionID(ctx, je.ID)
	if err != nil {
		return nil, err
	}
	for _, se := range steps {
		je.AddStepExecution(se)
	}
	return je, nil
}

// --- StepExecution ---

func (r *GormJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "GormJobRepository.SaveStepExecution"
	stepExecution.Version = 0
	if err := r.executor(ctx).Create(fromDomainStepExecution(stepExecution)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err, false, true)
	}
	return nil
}

func (r *GormJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "GormJobRepository.UpdateStepExecution"
	original := stepExecution.Version
	stepExecution.LastUpdated = time.Now()
	entity := fromDomainStepExecution(stepExecution)
	entity.Version = original + 1

	res := r.executor(ctx).
		Model(entity).
		Where("version = ?", original).
		Select("*").
		Updates(entity)
	if res.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), res.Error, false, true)
	}
	if res.RowsAffected == 0 {
		return r.missingOrStale(ctx, &StepExecutionEntity{}, stepExecution.ID, original, repository.ErrStepExecutionNotFound)
	}
	stepExecution.Version = original + 1
	return nil
}

func (r *GormJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "GormJobRepository.FindStepExecutionByID"
	var entities []StepExecutionEntity
	if err := r.executor(ctx).Where("id = ?", executionID).Limit(1).Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecution (ID: %s)", executionID), err, false, true)
	}
	if len(entities) == 0 {
		return nil, repository.ErrStepExecutionNotFound
	}
	return toDomainStepExecution(&entities[0]), nil
}

func (r *GormJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "GormJobRepository.FindStepExecutionsByJobExecutionID"
	var entities []StepExecutionEntity
	if err := r.executor(ctx).
		Where("job_execution_id = ?", jobExecutionID).
		Order("start_time").
		Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, "failed to find StepExecutions", err, false, true)
	}
	out := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainStepExecution(&entities[i]))
	}
	return out, nil
}

// missingOrStale tells a missing row from a concurrent modification after an
// update matched nothing.
func (r *GormJobRepository) missingOrStale(ctx context.Context, entity interface{}, id string, version int, notFound error) error {
	var count int64
	if err := r.executor(ctx).Model(entity).Where("id = ?", id).Count(&count).Error; err != nil {
		return exception.NewBatchError("GormJobRepository", "failed to check record existence", err, false, true)
	}
	if count == 0 {
		return notFound
	}
	return exception.NewOptimisticLockingFailure("repository", fmt.Sprintf("record %s with version %d was modified concurrently", id, version))
}

// Close is a no-op; the connection belongs to the gorm adapter module.
func (r *GormJobRepository) Close() error { return nil }

// IsNotFound reports whether err is one of the repository not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrJobInstanceNotFound) ||
		errors.Is(err, repository.ErrJobExecutionNotFound) ||
		errors.Is(err, repository.ErrStepExecutionNotFound)
}
