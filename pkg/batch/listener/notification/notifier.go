// Package notification reports finished job executions to a Notifier.
package notification

import (
	"context"
	"fmt"
	"time"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Notifier delivers the outcome of a job execution to an external party.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error
}

// LogNotifier writes a one-line summary of each finished job to the logger.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion implements Notifier.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	msg := Summary(execution)
	if execution.Status == model.BatchStatusCompleted {
		logger.Infof("%s", msg)
	} else {
		logger.Warnf("%s", msg)
	}
	return nil
}

var _ Notifier = (*LogNotifier)(nil)

// Summary renders the notification text of a job execution.
func Summary(execution *model.JobExecution) string {
	var duration time.Duration
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	written := 0
	for _, se := range execution.StepExecutions {
		written += se.WriteCount
	}
	return fmt.Sprintf("Job '%s' (execution %s) finished with status %s in %s: %d steps, %d items written, %d failures",
		execution.JobName, execution.ID, execution.Status, duration.Round(time.Millisecond),
		len(execution.StepExecutions), written, len(execution.Failures))
}

// JobListener forwards every finished job execution to its notifiers. Notifier errors
// are logged and never change the outcome of the job.
type JobListener struct {
	notifiers []Notifier
}

// NewJobListener creates a JobListener.
func NewJobListener(notifiers ...Notifier) *JobListener {
	return &JobListener{notifiers: notifiers}
}

func (l *JobListener) BeforeJob(context.Context, *model.JobExecution) {}

func (l *JobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, n := range l.notifiers {
		if err := n.NotifyJobCompletion(ctx, jobExecution); err != nil {
			logger.Errorf("Notification for job '%s' failed: %v", jobExecution.JobName, err)
		}
	}
}

var _ port.JobExecutionListener = (*JobListener)(nil)
