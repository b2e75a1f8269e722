package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// SaveJobExecution persists a new JobExecution.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %s already exists", jobExecution.ID)
	}
	jobExecution.Version = 0
	r.jobExecutions[jobExecution.ID] = jobExecution
	r.executionOrder = append(r.executionOrder, jobExecution.ID)
	return nil
}

// UpdateJobExecution bumps the version of a stored JobExecution.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.jobExecutions[jobExecution.ID]
	if !exists {
		return repository.ErrJobExecutionNotFound
	}
	if stored != jobExecution && stored.Version != jobExecution.Version {
		return exception.NewOptimisticLockingFailure("inmemory_repository",
			fmt.Sprintf("JobExecution %s: stored version %d, got %d", jobExecution.ID, stored.Version, jobExecution.Version))
	}
	jobExecution.Version++
	r.jobExecutions[jobExecution.ID] = jobExecution
	return nil
}

// FindJobExecutionByID finds a JobExecution by its ID.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	je, ok := r.jobExecutions[executionID]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return je, nil
}

// FindLatestJobExecution returns the last saved execution of the instance.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.executionOrder) - 1; i >= 0; i-- {
		if je := r.jobExecutions[r.executionOrder[i]]; je.JobInstanceID == jobInstanceID {
			return je, nil
		}
	}
	return nil, repository.ErrJobExecutionNotFound
}

// FindJobExecutionsByJobInstance returns all executions of the instance, oldest first.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.JobExecution
	for _, id := range r.executionOrder {
		if je := r.jobExecutions[id]; je.JobInstanceID == jobInstanceID {
			out = append(out, je)
		}
	}
	return out, nil
}
