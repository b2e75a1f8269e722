package logger

import "go.uber.org/fx"

// Module routes fx's own event log through the shared logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLogger),
)
