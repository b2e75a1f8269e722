package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// StepExecution is the run-scoped record of one step within a JobExecution.
//
// ReadCount, WriteCount and FilterCount only move at chunk commit, so
// ReadCount == WriteCount + FilterCount holds whenever the record is observed.
// RestartOffset is the absolute source position of the last commit; a relaunch
// skips that many items before reading.
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	JobExecutionID   string
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	ReadCount        int
	WriteCount       int
	FilterCount      int
	CommitCount      int
	RollbackCount    int
	RestartOffset    int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution creates a StepExecution in STARTING state attached to jobExecution.
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	now := time.Now()
	se := &StepExecution{
		ID:               id,
		StepName:         stepName,
		JobExecution:     jobExecution,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         FailureList{},
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      now,
	}
	if jobExecution != nil {
		se.JobExecutionID = jobExecution.ID
	}
	return se
}

// CopyForRestart creates the StepExecution for a relaunch. A COMPLETED step keeps its
// status and counters so the job can skip it. Any other step starts over with zeroed
// counters but carries RestartOffset and ExecutionContext forward.
func (se *StepExecution) CopyForRestart(newJobExecutionID string) *StepExecution {
	out := &StepExecution{
		ID:               NewID(),
		StepName:         se.StepName,
		JobExecutionID:   newJobExecutionID,
		Failures:         FailureList{},
		ExecutionContext: se.ExecutionContext.Copy(),
		RestartOffset:    se.RestartOffset,
		LastUpdated:      time.Now(),
	}
	if se.Status == BatchStatusCompleted {
		out.Status = BatchStatusCompleted
		out.ExitStatus = se.ExitStatus
		out.StartTime = se.StartTime
		out.EndTime = se.EndTime
		out.ReadCount = se.ReadCount
		out.WriteCount = se.WriteCount
		out.FilterCount = se.FilterCount
		out.CommitCount = se.CommitCount
		out.RollbackCount = se.RollbackCount
		return out
	}
	out.Status = BatchStatusStarting
	out.ExitStatus = ExitStatusUnknown
	out.StartTime = out.LastUpdated
	return out
}

// ApplyChunk credits a committed chunk. startOffset is the source position the
// current run resumed from.
func (se *StepExecution) ApplyChunk(read, filtered, written, startOffset int) {
	se.ReadCount += read
	se.FilterCount += filtered
	se.WriteCount += written
	se.CommitCount++
	se.RestartOffset = startOffset + se.ReadCount
	se.LastUpdated = time.Now()
}

// ChunkCheckpoint holds the fields ApplyChunk and a repository update change, so a
// chunk whose transaction does not commit can be undone.
type ChunkCheckpoint struct {
	readCount     int
	writeCount    int
	filterCount   int
	commitCount   int
	restartOffset int
	version       int
	lastUpdated   time.Time
}

// Checkpoint captures the current counters.
func (se *StepExecution) Checkpoint() ChunkCheckpoint {
	return ChunkCheckpoint{
		readCount:     se.ReadCount,
		writeCount:    se.WriteCount,
		filterCount:   se.FilterCount,
		commitCount:   se.CommitCount,
		restartOffset: se.RestartOffset,
		version:       se.Version,
		lastUpdated:   se.LastUpdated,
	}
}

// RevertTo restores the counters captured by Checkpoint.
func (se *StepExecution) RevertTo(cp ChunkCheckpoint) {
	se.ReadCount = cp.readCount
	se.WriteCount = cp.writeCount
	se.FilterCount = cp.filterCount
	se.CommitCount = cp.commitCount
	se.RestartOffset = cp.restartOffset
	se.Version = cp.version
	se.LastUpdated = cp.lastUpdated
}

func isValidStepTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	default:
		return false
	}
}

// TransitionTo changes the status if the transition is legal.
func (se *StepExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidStepTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s): invalid state transition: %s -> %s", se.ID, se.Status, newStatus)
	}
	se.Status = newStatus
	se.LastUpdated = time.Now()
	return nil
}

func (se *StepExecution) finish(status JobStatus) {
	if err := se.TransitionTo(status); err != nil {
		logger.Warnf("Could not update StepExecution '%s' status to %s: %v", se.StepName, status, err)
		se.Status = status
	}
	se.ExitStatus = status.ToExitStatus()
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// MarkAsStarted moves the step to STARTED.
func (se *StepExecution) MarkAsStarted() {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("Could not update StepExecution '%s' status to STARTED: %v", se.StepName, err)
		se.Status = BatchStatusStarted
	}
	se.StartTime = time.Now()
}

// MarkAsCompleted moves the step to COMPLETED.
func (se *StepExecution) MarkAsCompleted() { se.finish(BatchStatusCompleted) }

// MarkAsStopped moves the step to STOPPED.
func (se *StepExecution) MarkAsStopped() { se.finish(BatchStatusStopped) }

// MarkAsFailed moves the step to FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	se.finish(BatchStatusFailed)
	se.AddFailureException(err)
}

// AddFailureException records err unless the same message is already present.
func (se *StepExecution) AddFailureException(err error) {
	var added bool
	if se.Failures, added = se.Failures.add(err); added {
		se.LastUpdated = time.Now()
	}
}

// String renders the counters for log output.
func (se *StepExecution) String() string {
	return fmt.Sprintf("StepExecution{name=%s, status=%s, read=%d, write=%d, filter=%d, commit=%d, rollback=%d, restartOffset=%d}",
		se.StepName, se.Status, se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount, se.RestartOffset)
}
