package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Level comes from AJIRA_LOG_LEVEL; the
// default is info.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("AJIRA_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
