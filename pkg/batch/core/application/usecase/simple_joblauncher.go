package usecase

import (
	"context"
	"errors"
	"sync"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ErrJobInstanceAlreadyComplete is returned when the parameters identify an instance
// whose latest execution COMPLETED.
var ErrJobInstanceAlreadyComplete = errors.New("job instance already complete")

// ErrJobExecutionAlreadyRunning is returned when the instance has an unfinished execution.
var ErrJobExecutionAlreadyRunning = errors.New("job execution already running")

// ErrJobInstanceNotRestartable is returned when the latest execution was ABANDONED.
var ErrJobInstanceNotRestartable = errors.New("job instance not restartable")

// SimpleJobLauncher runs jobs synchronously in the caller's goroutine.
//
// A launch whose parameters identify an existing instance with a FAILED or STOPPED
// latest execution restarts that instance: the new execution carries over the step
// executions of the previous one, so COMPLETED steps are skipped and unfinished chunk
// steps resume at their restart offset.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	registry      *support.JobRegistry
	jobRunner     port.JobRunner

	mu sync.Mutex
	// cancels holds the cancel functions of running executions, by execution ID.
	cancels map[string]context.CancelFunc
	// running holds the instance IDs with an execution in this process.
	running map[string]struct{}
}

var _ port.JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, registry *support.JobRegistry, runner port.JobRunner) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: repo,
		registry:      registry,
		jobRunner:     runner,
		cancels:       make(map[string]context.CancelFunc),
		running:       make(map[string]struct{}),
	}
}

// Launch runs jobName and returns its execution in a terminal status.
//
// When the job has an incrementer and params do not set its key, the incrementer
// derives the parameters from the latest instance of the job, unless that instance
// is restartable, in which case its parameters are reused and the launch is a restart.
// params always override the derived values.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params.String())

	effective, err := l.resolveParameters(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	instance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, effective)
	isNewInstance := errors.Is(err, repository.ErrJobInstanceNotFound)
	if err != nil && !isNewInstance {
		return nil, exception.NewBatchError("job_launcher", "failed to search for existing JobInstance", err, false, false)
	}
	if isNewInstance {
		instance = model.NewJobInstance(jobName, effective)
	}

	if err := l.claim(instance.ID); err != nil {
		return nil, err
	}
	defer l.release(instance.ID)

	var jobExecution *model.JobExecution
	if isNewInstance {
		jobExecution = model.NewJobExecution(instance.ID, jobName, instance.Parameters)
	} else if jobExecution, err = l.prepareExecution(ctx, instance); err != nil {
		return nil, err
	}

	// The job is built before anything is persisted so that a configuration error
	// leaves no instance or execution behind.
	job, err := l.registry.CreateJob(ctx, jobName, jobExecution.Parameters)
	if err != nil {
		return nil, err
	}

	if isNewInstance {
		if err := l.jobRepository.SaveJobInstance(ctx, instance); err != nil {
			return nil, exception.NewBatchError("job_launcher", "failed to save new JobInstance", err, false, false)
		}
		logger.Infof("Created JobInstance (ID: %s, JobName: %s).", instance.ID, jobName)
	}
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError("job_launcher", "failed to save JobExecution", err, false, false)
	}
	for _, se := range jobExecution.StepExecutions {
		if err := l.jobRepository.SaveStepExecution(ctx, se); err != nil {
			return nil, exception.NewBatchError("job_launcher", "failed to save restarted StepExecution", err, false, false)
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	l.registerCancel(jobExecution.ID, cancel)
	defer func() {
		l.unregisterCancel(jobExecution.ID)
		cancel()
	}()

	l.jobRunner.Run(jobCtx, job, jobExecution)

	logger.Infof("Job '%s' (Execution ID: %s, restart %d) ended with status %s.",
		jobName, jobExecution.ID, jobExecution.RestartCount, jobExecution.Status)
	return jobExecution, nil
}

func (l *SimpleJobLauncher) resolveParameters(ctx context.Context, jobName string, params model.JobParameters) (model.JobParameters, error) {
	inc, err := l.registry.Incrementer(jobName)
	if err != nil {
		return model.JobParameters{}, err
	}
	if inc == nil || params.Has(inc.Key()) {
		return params, nil
	}

	last, err := l.jobRepository.FindLatestJobInstance(ctx, jobName)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		return inc.GetNext(model.NewJobParameters()).Merge(params), nil
	}
	if err != nil {
		return model.JobParameters{}, exception.NewBatchError("job_launcher", "failed to find the latest JobInstance", err, false, false)
	}

	lastExecution, err := l.jobRepository.FindLatestJobExecution(ctx, last.ID)
	if err != nil && !errors.Is(err, repository.ErrJobExecutionNotFound) {
		return model.JobParameters{}, exception.NewBatchError("job_launcher", "failed to find the latest JobExecution", err, false, false)
	}
	if lastExecution != nil && lastExecution.Status.IsRestartable() {
		logger.Infof("Job '%s': latest execution %s is %s, reusing its parameters.", jobName, lastExecution.ID, lastExecution.Status)
		return last.Parameters.Merge(params), nil
	}

	next := inc.GetNext(last.Parameters).Merge(params)
	logger.Infof("Job '%s': incremented parameters: %s", jobName, next.String())
	return next, nil
}

// prepareExecution creates the next execution of an existing instance.
func (l *SimpleJobLauncher) prepareExecution(ctx context.Context, instance *model.JobInstance) (*model.JobExecution, error) {
	last, err := l.jobRepository.FindLatestJobExecution(ctx, instance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		return model.NewJobExecution(instance.ID, instance.JobName, instance.Parameters), nil
	}
	if err != nil {
		return nil, exception.NewBatchError("job_launcher", "failed to find the latest JobExecution", err, false, false)
	}

	switch {
	case last.Status == model.BatchStatusCompleted:
		return nil, exception.NewBatchError("job_launcher",
			"JobInstance "+instance.ID+" of '"+instance.JobName+"' already completed with these parameters", ErrJobInstanceAlreadyComplete, false, false)
	case !last.Status.IsFinished():
		return nil, exception.NewBatchError("job_launcher",
			"JobExecution "+last.ID+" is "+last.Status.String(), ErrJobExecutionAlreadyRunning, false, false)
	case !last.Status.IsRestartable():
		return nil, exception.NewBatchError("job_launcher",
			"JobExecution "+last.ID+" is "+last.Status.String(), ErrJobInstanceNotRestartable, false, false)
	}

	je := model.NewJobExecution(instance.ID, instance.JobName, instance.Parameters)
	je.RestartCount = last.RestartCount + 1
	if last.ExecutionContext != nil {
		je.ExecutionContext = last.ExecutionContext.Copy()
	}
	for _, prev := range last.StepExecutions {
		je.AddStepExecution(prev.CopyForRestart(je.ID))
	}
	logger.Infof("Restarting JobInstance (ID: %s) after %s execution %s (restart %d).",
		instance.ID, last.Status, last.ID, je.RestartCount)
	return je, nil
}

func (l *SimpleJobLauncher) claim(instanceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.running[instanceID]; busy {
		return exception.NewBatchError("job_launcher", "JobInstance "+instanceID+" is being launched", ErrJobExecutionAlreadyRunning, false, false)
	}
	l.running[instanceID] = struct{}{}
	return nil
}

func (l *SimpleJobLauncher) release(instanceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, instanceID)
}

func (l *SimpleJobLauncher) registerCancel(executionID string, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels[executionID] = cancel
}

func (l *SimpleJobLauncher) unregisterCancel(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cancels, executionID)
}

// CancelFunc returns the cancel function of a running execution.
func (l *SimpleJobLauncher) CancelFunc(executionID string) (context.CancelFunc, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancel, ok := l.cancels[executionID]
	return cancel, ok
}
