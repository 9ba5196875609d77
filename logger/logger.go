// Package logger holds the structured logger shared by the efimem packages.
//
// Output is discarded until Init is called, so the library stays silent
// unless its host opts in.
package logger

import (
	"io"
	"log/slog"
)

// L is the global logger instance. It discards all output by default.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination for log records; required when Enabled
	Level   slog.Level // Minimum log level. Default: LevelInfo
	JSON    bool       // Emit JSON records instead of key=value text
}

// Init configures logging. Call before any efimem operation whose output
// you want to see.
func Init(opts Options) {
	if !opts.Enabled || opts.Writer == nil {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(opts.Writer, handlerOpts))
		return
	}
	L = slog.New(slog.NewTextHandler(opts.Writer, handlerOpts))
}

// Set replaces the logger. A nil logger restores the discarding default.
func Set(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	L = l
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
