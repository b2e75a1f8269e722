// Package incrementer provides JobParametersIncrementer implementations.
package incrementer

import (
	"fmt"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter managed by a RunIDIncrementer created with an empty name.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets its key to 1 when absent and otherwise increments it.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer managing the parameter name.
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// Key returns the managed parameter name.
func (i *RunIDIncrementer) Key() string {
	return i.name
}

// GetNext returns a copy of params with the run id advanced.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()

	current, ok := params.GetInt(i.name)
	if !ok {
		next.Put(i.name, 1)
		logger.Debugf("JobParametersIncrementer '%s': not found, setting to 1.", i.name)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("JobParametersIncrementer '%s': incrementing from %d to %d.", i.name, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
