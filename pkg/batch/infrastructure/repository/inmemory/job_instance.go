package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
)

// SaveJobInstance persists a new JobInstance.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[jobInstance.ID]; exists {
		return fmt.Errorf("JobInstance with ID %s already exists", jobInstance.ID)
	}
	r.jobInstances[jobInstance.ID] = jobInstance
	r.instanceOrder = append(r.instanceOrder, jobInstance.ID)
	return nil
}

// FindJobInstanceByJobNameAndParameters finds a JobInstance by job name and exact parameters.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.instanceOrder {
		ji := r.jobInstances[id]
		if ji.JobName == jobName && ji.Parameters.Equal(params) {
			return ji, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// FindLatestJobInstance returns the last saved instance of jobName.
func (r *InMemoryJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.instanceOrder) - 1; i >= 0; i-- {
		if ji := r.jobInstances[r.instanceOrder[i]]; ji.JobName == jobName {
			return ji, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// GetJobNames returns the distinct job names, sorted.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, ji := range r.jobInstances {
		if _, ok := seen[ji.JobName]; !ok {
			seen[ji.JobName] = struct{}{}
			names = append(names, ji.JobName)
		}
	}
	sort.Strings(names)
	return names, nil
}
