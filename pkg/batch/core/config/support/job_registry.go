// Package support holds the JobRegistry, which maps job names to the factories that
// build their steps for one launch.
package support

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	runner "github.com/tigerroll/chunkbatch/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// JobFactory builds the ordered steps of a job for a single launch. Every call must
// return fresh readers, processors and writers: nothing is shared between launches.
//
// Parameters:
//
//	ctx: The launch context.
//	params: The effective JobParameters of the launch, after incrementing and merging.
//
// Returns:
//
//	[]port.Step: The steps in execution order.
//	error: An error if a step could not be configured (e.g. an invalid chunkSize).
type JobFactory func(ctx context.Context, params model.JobParameters) ([]port.Step, error)

type registration struct {
	factory     JobFactory
	incrementer port.JobParametersIncrementer
	listeners   []port.JobExecutionListener
}

// JobRegistry maps job names to factories. Jobs are built per launch with the
// registry's repository, recorder, tracer and global job listeners.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]registration

	jobRepository  repository.JobRepository
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
	jobListeners   []port.JobExecutionListener
}

// JobRegistryParams defines the dependencies NewJobRegistry receives from Fx.
type JobRegistryParams struct {
	fx.In
	Repo           repository.JobRepository
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
	JobListeners   []port.JobExecutionListener `group:"jobListeners"`
}

// NewJobRegistry creates an empty JobRegistry.
func NewJobRegistry(p JobRegistryParams) *JobRegistry {
	return &JobRegistry{
		jobs:           make(map[string]registration),
		jobRepository:  p.Repo,
		metricRecorder: p.MetricRecorder,
		tracer:         p.Tracer,
		jobListeners:   p.JobListeners,
	}
}

// Option customizes a job registration.
type Option func(*registration)

// WithIncrementer sets the incrementer applied to the job's parameters on every
// non-restart launch.
func WithIncrementer(inc port.JobParametersIncrementer) Option {
	return func(r *registration) { r.incrementer = inc }
}

// WithJobListeners adds listeners for this job only, after the global ones.
func WithJobListeners(listeners ...port.JobExecutionListener) Option {
	return func(r *registration) { r.listeners = append(r.listeners, listeners...) }
}

// Register adds a job. Registering the same name twice is an error.
func (r *JobRegistry) Register(name string, factory JobFactory, opts ...Option) error {
	if name == "" || factory == nil {
		return exception.NewBatchErrorf("job_registry", "job name and factory are required")
	}
	reg := registration{factory: factory}
	for _, opt := range opts {
		opt(&reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return exception.NewBatchErrorf("job_registry", "job '%s' is already registered", name)
	}
	r.jobs[name] = reg
	logger.Debugf("JobRegistry: registered job '%s' (incrementer: %v).", name, reg.incrementer)
	return nil
}

// Incrementer returns the incrementer of jobName, or nil if it has none.
func (r *JobRegistry) Incrementer(jobName string) (port.JobParametersIncrementer, error) {
	reg, err := r.lookup(jobName)
	if err != nil {
		return nil, err
	}
	return reg.incrementer, nil
}

// CreateJob builds jobName for a launch with params.
func (r *JobRegistry) CreateJob(ctx context.Context, jobName string, params model.JobParameters) (port.Job, error) {
	reg, err := r.lookup(jobName)
	if err != nil {
		return nil, err
	}
	steps, err := reg.factory(ctx, params)
	if err != nil {
		return nil, exception.NewBatchError("job_registry", "failed to build job '"+jobName+"'", err, false, false)
	}
	if len(steps) == 0 {
		return nil, exception.NewBatchErrorf("job_registry", "job '%s' has no steps", jobName)
	}

	listeners := make([]port.JobExecutionListener, 0, len(r.jobListeners)+len(reg.listeners))
	listeners = append(listeners, r.jobListeners...)
	listeners = append(listeners, reg.listeners...)
	return runner.NewSimpleJob(jobName, steps, r.jobRepository, listeners, r.metricRecorder, r.tracer), nil
}

// JobNames returns the registered job names in lexical order.
func (r *JobRegistry) JobNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *JobRegistry) lookup(jobName string) (registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.jobs[jobName]
	if !ok {
		return registration{}, exception.NewBatchErrorf("job_registry", "job '%s' is not registered", jobName)
	}
	return reg, nil
}
