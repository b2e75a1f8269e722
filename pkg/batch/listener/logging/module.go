package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
)

// Module contributes the logging job listener to every registered job.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLoggingJobListener,
		fx.As(new(port.JobExecutionListener)),
		fx.ResultTags(`group:"jobListeners"`),
	)),
)
