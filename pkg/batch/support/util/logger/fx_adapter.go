package logger

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

// NewFxLogger returns an fxevent.Logger writing through the shared zap core.
// Fx lifecycle events are logged at DEBUG so they stay out of normal job output.
func NewFxLogger() fxevent.Logger {
	zl := &fxevent.ZapLogger{Logger: L()}
	zl.UseLogLevel(zapcore.DebugLevel)
	return zl
}
