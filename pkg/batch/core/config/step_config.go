package config

import (
	"fmt"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// DefaultChunkSize is the commit interval used when neither the configuration nor the
// job parameters set one.
const DefaultChunkSize = 10

const (
	// ParamChunkSize is the job parameter overriding the commit interval.
	ParamChunkSize = "chunkSize"
	// ParamAllowDuplicate is the job parameter disabling duplicate suppression.
	ParamAllowDuplicate = "allowDuplicate"
)

// paramAliases maps accepted spellings to the canonical parameter name.
var paramAliases = map[string]string{
	"chunk_size":      ParamChunkSize,
	"allow_duplicate": ParamAllowDuplicate,
}

// StepConfig holds the per-run step settings taken from job parameters. It is decoded
// once when a job's steps are built and never re-read while they run.
type StepConfig struct {
	ChunkSize      int  `yaml:"chunkSize"`
	AllowDuplicate bool `yaml:"allowDuplicate"`
}

// NewStepConfig decodes a StepConfig from params. Values may be typed or strings
// ("10", "true"). Missing keys fall back to defaultChunkSize and false.
//
// Parameters:
//
//	params: The launch parameters.
//	defaultChunkSize: The chunk size when params has none. Values below 1 mean DefaultChunkSize.
//
// Returns:
//
//	The decoded StepConfig, or an error if a value has the wrong type or chunkSize is not positive.
func NewStepConfig(params model.JobParameters, defaultChunkSize int) (StepConfig, error) {
	if defaultChunkSize < 1 {
		defaultChunkSize = DefaultChunkSize
	}
	sc := StepConfig{ChunkSize: defaultChunkSize}

	props := make(map[string]interface{}, 2)
	for alias, canonical := range paramAliases {
		if v, ok := params.Params[alias]; ok {
			props[canonical] = v
		}
	}
	// The canonical spelling wins over an alias.
	for _, key := range []string{ParamChunkSize, ParamAllowDuplicate} {
		if v, ok := params.Params[key]; ok {
			props[key] = v
		}
	}

	if err := configbinder.BindProperties(props, &sc); err != nil {
		return StepConfig{}, exception.NewBatchError(moduleName, "failed to decode step parameters", err, false, false)
	}
	if sc.ChunkSize <= 0 {
		return StepConfig{}, exception.NewBatchError(moduleName, fmt.Sprintf("%s must be positive, got %d", ParamChunkSize, sc.ChunkSize), nil, false, false)
	}
	return sc, nil
}
