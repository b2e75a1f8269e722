package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
)

func newJobListener(n Notifier) *JobListener {
	return NewJobListener(n)
}

// Module provides the log notifier and contributes its job listener to every registered job.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLogNotifier, fx.As(new(Notifier)))),
	fx.Provide(fx.Annotate(
		newJobListener,
		fx.As(new(port.JobExecutionListener)),
		fx.ResultTags(`group:"jobListeners"`),
	)),
)
