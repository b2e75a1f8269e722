package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ErrJobInstanceNotFound is returned when no JobInstance matches the query.
var ErrJobInstanceNotFound = errors.New("job instance not found")

// JobInstance persists JobInstances.
type JobInstance interface {
	// SaveJobInstance stores a new JobInstance.
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error
	// FindJobInstanceByJobNameAndParameters returns the instance whose parameters equal params.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	// FindLatestJobInstance returns the most recently created instance of jobName.
	FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error)
	// GetJobNames returns the distinct names of all persisted jobs.
	GetJobNames(ctx context.Context) ([]string, error)
}
