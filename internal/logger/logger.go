// Package logger provides leveled structured logging.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var defaultLogger *slog.Logger

// Init initializes the default logger with the specified level and format,
// writing to stderr.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level).slog()}
	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	defaultLogger = slog.New(h)
}

// Slog exposes the underlying logger, or nil before Init.
func Slog() *slog.Logger {
	return defaultLogger
}

func logf(l slog.Level, format string, args ...interface{}) {
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), l) {
		return
	}
	defaultLogger.Log(context.Background(), l, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) {
	logf(slog.LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	logf(slog.LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	logf(slog.LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	logf(slog.LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	logf(slog.LevelError, "FATAL: "+format, args...)
	os.Exit(1)
}
