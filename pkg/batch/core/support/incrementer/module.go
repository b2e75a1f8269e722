package incrementer

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
)

// Module provides the default incrementers as named port.JobParametersIncrementer
// values: "runIdIncrementer" (key run.id) and "timestampIncrementer" (key timestamp).
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			func() port.JobParametersIncrementer { return NewRunIDIncrementer(DefaultRunIDKey) },
			fx.ResultTags(`name:"runIdIncrementer"`),
		),
		fx.Annotate(
			func() port.JobParametersIncrementer { return NewTimestampIncrementer(DefaultTimestampKey) },
			fx.ResultTags(`name:"timestampIncrementer"`),
		),
	),
)
