package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ErrStepExecutionNotFound is returned when no StepExecution matches the query.
var ErrStepExecutionNotFound = errors.New("step execution not found")

// StepExecution persists StepExecutions.
type StepExecution interface {
	// SaveStepExecution stores a new StepExecution.
	SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	// UpdateStepExecution stores counters, status, restart offset and context.
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	// FindStepExecutionByID returns the StepExecution with executionID.
	FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error)
	// FindStepExecutionsByJobExecutionID returns the steps of a job execution in start order.
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error)
}
