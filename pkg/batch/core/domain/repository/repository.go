// Package repository defines persistence of job metadata: instances, executions,
// and step executions with their restart offsets.
package repository

// JobRepository aggregates all metadata persistence operations.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution

	// Close releases the underlying store.
	Close() error
}
