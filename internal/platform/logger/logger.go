package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Text output to stdout; swap the handler
// here if a collector needs JSON.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
