package pkg

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Serial stack component identifiers.
const (
	ComponentSerial  Component = "serial"
	ComponentHAL     Component = "hal"
	ComponentSim     Component = "sim"
	ComponentMetrics Component = "metrics"
	ComponentExample Component = "example"
)

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Text format (default)
	LogFormatJSON                  // JSON format
)

var (
	logLevel = new(slog.LevelVar)

	// logMutex guards defaultLogger.
	logMutex      sync.RWMutex
	defaultLogger *slog.Logger
)

func init() {
	logLevel.Set(slog.LevelWarn)
	setOutput(os.Stderr, LogFormatText)
}

// SetLogLevel sets the minimum level of every logger handed out by Logger,
// including those created before the call.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLogFormat switches the default logger to format, writing to os.Stderr.
// Loggers already obtained from Logger keep their previous handler.
func SetLogFormat(format LogFormat) {
	setOutput(os.Stderr, format)
}

func setOutput(w io.Writer, format LogFormat) {
	opts := &slog.HandlerOptions{Level: logLevel}

	var h slog.Handler
	switch format {
	case LogFormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	logMutex.Lock()
	defer logMutex.Unlock()
	defaultLogger = slog.New(h)
}

// Logger returns the current default logger tagged with component.
// Components that log on a hot path hold on to the result instead of
// going through the package-level helpers on every call.
func Logger(component Component) *slog.Logger {
	logMutex.RLock()
	logger := defaultLogger
	logMutex.RUnlock()
	return logger.With("component", string(component))
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	Logger(component).Debug(msg, args...)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	Logger(component).Info(msg, args...)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	Logger(component).Warn(msg, args...)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	Logger(component).Error(msg, args...)
}
