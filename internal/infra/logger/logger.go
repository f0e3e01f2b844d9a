package logger

import (
	"log/slog"
	"os"
)

// New builds the process-wide JSON logger. Dev environments log at debug.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" || env == "local" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
