package sql

import (
	"time"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// JobInstanceEntity is the persisted form of model.JobInstance.
type JobInstanceEntity struct {
	ID             string `gorm:"primaryKey"`
	JobName        string
	Parameters     model.JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the persisted form of model.JobExecution. Step executions
// live in their own table.
type JobExecutionEntity struct {
	ID               string `gorm:"primaryKey"`
	JobInstanceID    string
	JobName          string
	Parameters       model.JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus
	ExitStatus       model.ExitStatus
	Failures         model.FailureList
	ExecutionContext model.ExecutionContext
	CurrentStepName  string
	RestartCount     int
	CreateTime       time.Time
	LastUpdated      time.Time
	Version          int
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the persisted form of model.StepExecution.
type StepExecutionEntity struct {
	ID               string `gorm:"primaryKey"`
	StepName         string
	JobExecutionID   string
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus
	ExitStatus       model.ExitStatus
	Failures         model.FailureList
	ReadCount        int
	WriteCount       int
	FilterCount      int
	CommitCount      int
	RollbackCount    int
	RestartOffset    int
	ExecutionContext model.ExecutionContext
	LastUpdated      time.Time
	Version          int
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}
