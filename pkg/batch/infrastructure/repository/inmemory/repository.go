// Package inmemory provides an in-memory JobRepository for tests and for runs that do
// not need metadata to outlive the process.
package inmemory

import (
	"sync"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository holds all job metadata in maps. Slices keep insertion order
// so that "latest" lookups are deterministic.
type InMemoryJobRepository struct {
	mu sync.RWMutex

	jobInstances   map[string]*model.JobInstance
	instanceOrder  []string
	jobExecutions  map[string]*model.JobExecution
	executionOrder []string
	stepExecutions map[string]*model.StepExecution
	stepOrder      []string
}

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
	}
}

// Close is a no-op.
func (r *InMemoryJobRepository) Close() error {
	return nil
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)
