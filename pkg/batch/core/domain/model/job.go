package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// JobInstance is the logical run of a job, identified by its name and parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	hash, err := params.Hash()
	if err != nil {
		logger.Errorf("Failed to calculate JobParameters hash: %v", err)
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}
}

// JobExecution is a single attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
	RestartCount     int
	CreateTime       time.Time
	LastUpdated      time.Time
	Version          int
}

// NewJobExecution creates a JobExecution in STARTING state.
func NewJobExecution(jobInstanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         FailureList{},
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
		CreateTime:       now,
		LastUpdated:      now,
	}
}

func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusFailed, BatchStatusStopped:
		return next == BatchStatusAbandoned
	default:
		return false
	}
}

// TransitionTo changes the status if the transition is legal.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidJobTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

func (je *JobExecution) forceTransition(newStatus JobStatus) {
	if err := je.TransitionTo(newStatus); err != nil {
		logger.Warnf("Could not update JobExecution status to %s: %v", newStatus, err)
		je.Status = newStatus
		je.LastUpdated = time.Now()
	}
}

func (je *JobExecution) finish(status JobStatus) {
	je.forceTransition(status)
	je.ExitStatus = status.ToExitStatus()
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsStarted moves the execution to STARTED.
func (je *JobExecution) MarkAsStarted() {
	je.forceTransition(BatchStatusStarted)
	je.StartTime = je.LastUpdated
}

// MarkAsCompleted moves the execution to COMPLETED.
func (je *JobExecution) MarkAsCompleted() { je.finish(BatchStatusCompleted) }

// MarkAsStopped moves the execution to STOPPED.
func (je *JobExecution) MarkAsStopped() { je.finish(BatchStatusStopped) }

// MarkAsAbandoned moves the execution to ABANDONED.
func (je *JobExecution) MarkAsAbandoned() { je.finish(BatchStatusAbandoned) }

// MarkAsFailed moves the execution to FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.finish(BatchStatusFailed)
	je.AddFailureException(err)
}

// AddFailureException records err unless the same message is already present.
func (je *JobExecution) AddFailureException(err error) {
	var added bool
	if je.Failures, added = je.Failures.add(err); added {
		je.LastUpdated = time.Now()
	}
}

// AddStepExecution appends se and links it back to je.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	se.JobExecution = je
	se.JobExecutionID = je.ID
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution returns the step execution named stepName, or nil.
func (je *JobExecution) StepExecution(stepName string) *StepExecution {
	for _, se := range je.StepExecutions {
		if se.StepName == stepName {
			return se
		}
	}
	return nil
}
