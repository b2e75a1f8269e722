package sql

import (
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Parameters:     ji.Parameters,
		ParametersHash: ji.ParametersHash,
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}
}

func toDomainJobInstance(e *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             e.ID,
		JobName:        e.JobName,
		Parameters:     e.Parameters,
		ParametersHash: e.ParametersHash,
		CreateTime:     e.CreateTime,
		Version:        e.Version,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	failures := je.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	ec := je.ExecutionContext
	if ec == nil {
		ec = model.NewExecutionContext()
	}
	return &JobExecutionEntity{
		ID:               je.ID,
		JobInstanceID:    je.JobInstanceID,
		JobName:          je.JobName,
		Parameters:       je.Parameters,
		StartTime:        je.StartTime,
		EndTime:          je.EndTime,
		Status:           je.Status,
		ExitStatus:       je.ExitStatus,
		Failures:         failures,
		ExecutionContext: ec,
		CurrentStepName:  je.CurrentStepName,
		RestartCount:     je.RestartCount,
		CreateTime:       je.CreateTime,
		LastUpdated:      je.LastUpdated,
		Version:          je.Version,
	}
}

func toDomainJobExecution(e *JobExecutionEntity) *model.JobExecution {
	return &model.JobExecution{
		ID:               e.ID,
		JobInstanceID:    e.JobInstanceID,
		JobName:          e.JobName,
		Parameters:       e.Parameters,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Status:           e.Status,
		ExitStatus:       e.ExitStatus,
		Failures:         e.Failures,
		StepExecutions:   make([]*model.StepExecution, 0),
		ExecutionContext: e.ExecutionContext,
		CurrentStepName:  e.CurrentStepName,
		RestartCount:     e.RestartCount,
		CreateTime:       e.CreateTime,
		LastUpdated:      e.LastUpdated,
		Version:          e.Version,
	}
}

func fromDomainStepExecution(se *model.StepExecution) *StepExecutionEntity {
	failures := se.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	ec := se.ExecutionContext
	if ec == nil {
		ec = model.NewExecutionContext()
	}
	jobExecutionID := se.JobExecutionID
	if jobExecutionID == "" && se.JobExecution != nil {
		jobExecutionID = se.JobExecution.ID
	}
	return &StepExecutionEntity{
		ID:               se.ID,
		StepName:         se.StepName,
		JobExecutionID:   jobExecutionID,
		StartTime:        se.StartTime,
		EndTime:          se.EndTime,
		Status:           se.Status,
		ExitStatus:       se.ExitStatus,
		Failures:         failures,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		FilterCount:      se.FilterCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		RestartOffset:    se.RestartOffset,
		ExecutionContext: ec,
		LastUpdated:      se.LastUpdated,
		Version:          se.Version,
	}
}

func toDomainStepExecution(e *StepExecutionEntity) *model.StepExecution {
	return &model.StepExecution{
		ID:               e.ID,
		StepName:         e.StepName,
		JobExecutionID:   e.JobExecutionID,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Status:           e.Status,
		ExitStatus:       e.ExitStatus,
		Failures:         e.Failures,
		ReadCount:        e.ReadCount,
		WriteCount:       e.WriteCount,
		FilterCount:      e.FilterCount,
		CommitCount:      e.CommitCount,
		RollbackCount:    e.RollbackCount,
		RestartOffset:    e.RestartOffset,
		ExecutionContext: e.ExecutionContext,
		LastUpdated:      e.LastUpdated,
		Version:          e.Version,
	}
}
