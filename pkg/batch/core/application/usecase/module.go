package usecase

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
)

// Module provides the JobLauncher, JobOperator and JobExplorer.
var Module = fx.Options(
	fx.Provide(NewSimpleJobLauncher),
	fx.Provide(fx.Annotate(
		func(launcher *SimpleJobLauncher) port.JobLauncher { return launcher },
	)),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
)
