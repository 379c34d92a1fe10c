// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// ParseLevel maps a config level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the default logger with a text handler on stderr at the given level.
func Init(level string) {
	InitWriter(os.Stderr, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	defaultLogger = slog.New(h)
}

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// Logger returns the default logger instance.
func Logger() *slog.Logger {
	return defaultLogger
}

// SetLogger allows replacing the default logger (for tests or customization).
func SetLogger(l *slog.Logger) {
	defaultLogger = l
}
