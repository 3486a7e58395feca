package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel  // Minimum log level to output
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger with dispatch-aware logging helpers
type Logger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: convertLogLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// NewLoggerFromConfig creates a logger from application configuration values
func NewLoggerFromConfig(logLevel, logFormat string, quiet bool) *Logger {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = LevelDebug
	case "error":
		level = LevelError
	default:
		level = LevelInfo
	}

	var format LogFormat
	switch logFormat {
	case "json":
		format = FormatJSON
	default:
		format = FormatText
	}

	return NewLogger(Config{Level: level, Format: format, Quiet: quiet})
}

func convertLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that includes the given attributes in every entry.
// Connection attempts receive a logger scoped to one device and port so that
// no shared logger state is mutated across concurrent units.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		logger: l.logger.With(args...),
		config: l.config,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Debug(msg, args...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return // Suppress non-error output in quiet mode
	}
	l.logger.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// IsQuiet returns whether the logger is in quiet mode
func (l *Logger) IsQuiet() bool {
	return l.config.Quiet
}

// LogSessionOpen logs a successful session open. The receiver is expected to
// be an attempt-scoped logger already carrying device, host, and port fields.
func (l *Logger) LogSessionOpen(duration time.Duration) {
	l.Info("session opened",
		"duration_ms", duration.Milliseconds(),
		// Note: Never log credentials or authentication details
	)
}

// LogAttemptError logs a failed connection attempt on one candidate port
func (l *Logger) LogAttemptError(err error) {
	l.Error("connection attempt failed",
		"error", err.Error(),
	)
}

// LogQuery logs a completed read-only query
func (l *Logger) LogQuery(duration time.Duration) {
	l.Info("query executed",
		"duration_ms", duration.Milliseconds(),
		// Note: Never log the command text itself
	)
}

// LogCommit logs a completed configuration commit
func (l *Logger) LogCommit(duration time.Duration) {
	l.Info("configuration committed",
		"duration_ms", duration.Milliseconds(),
	)
}

// LogDispatchStart logs the start of a dispatch run
func (l *Logger) LogDispatchStart(deviceCount, concurrency int, mutating bool) {
	l.Info("dispatch started",
		"device_count", deviceCount,
		"concurrency", concurrency,
		"mutating", mutating,
	)
}

// LogDispatchComplete logs the completion of a dispatch run
func (l *Logger) LogDispatchComplete(deviceCount, successCount, errorCount int, duration time.Duration) {
	l.Info("dispatch completed",
		"device_count", deviceCount,
		"success_count", successCount,
		"error_count", errorCount,
		"total_duration_ms", duration.Milliseconds(),
	)
}

// LogInventoryLoad logs inventory loading events
func (l *Logger) LogInventoryLoad(source string, count int) {
	l.Info("inventory loaded",
		"source", source,
		"device_count", count,
	)
}

// LogInventoryError logs inventory loading errors
func (l *Logger) LogInventoryError(source string, err error) {
	l.Error("inventory load failed",
		"source", source,
		"error", err.Error(),
	)
}

// LogExportError logs report export errors
func (l *Logger) LogExportError(destination string, err error) {
	l.Error("report export failed",
		"destination", destination,
		"error", err.Error(),
	)
}

// LogHostKeyWarning logs a host-key verification warning
func (l *Logger) LogHostKeyWarning(hostname string, message string) {
	l.Warn("connection security warning",
		"host", hostname,
		"warning", message,
	)
}
