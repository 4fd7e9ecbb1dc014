package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Development mode
// switches to the human-readable text handler and debug level.
func New(development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
