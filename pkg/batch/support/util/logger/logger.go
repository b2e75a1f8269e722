// Package logger provides the logging utility shared by every chunkbatch package.
// It keeps a printf-style global API and delegates to a zap SugaredLogger, filtering
// messages by a process-wide level that can be changed at runtime.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	silent bool
)

func init() {
	setOutput(os.Stderr)
}

func newCore(w io.Writer) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
}

func setOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = zap.New(newCore(w), zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = base.Sugar()
}

// SetOutput redirects all log output to w. Intended for tests and CLI wiring.
func SetOutput(w io.Writer) {
	setOutput(w)
}

// SetLogLevel sets the global log level.
// Valid values are "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL" and "SILENT" (case-insensitive).
// TRACE is treated as DEBUG. Unknown values fall back to INFO.
func SetLogLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	silent = false
	switch strings.ToUpper(lvl) {
	case "TRACE", "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		level.SetLevel(zapcore.ErrorLevel)
	case "FATAL":
		level.SetLevel(zapcore.FatalLevel)
	case "SILENT":
		silent = true
		level.SetLevel(zapcore.FatalLevel)
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level '%s' specified. Defaulting to INFO level.\n", lvl)
		level.SetLevel(zapcore.InfoLevel)
	}
}

// GetLogLevel returns the active level name.
func GetLogLevel() string {
	mu.RLock()
	defer mu.RUnlock()
	if silent {
		return "SILENT"
	}
	return level.Level().CapitalString()
}

// L returns the underlying zap logger, e.g. for fxevent.ZapLogger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a sugared logger annotated with the given key/value pairs.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.With(keysAndValues...)
}

func current() (*zap.SugaredLogger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return sugar, silent
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	if s, off := current(); !off {
		s.Debugf(format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if s, off := current(); !off {
		s.Infof(format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	if s, off := current(); !off {
		s.Warnf(format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if s, off := current(); !off {
		s.Errorf(format, v...)
	}
}

// Fatalf logs at FATAL level and terminates the process with os.Exit(1),
// regardless of the SILENT setting.
func Fatalf(format string, v ...interface{}) {
	s, _ := current()
	s.Fatalf(format, v...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
