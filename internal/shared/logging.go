package shared

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide logger on stderr; stdout carries
// reports.
func InitLogger(format, level string) *slog.Logger {
	return InitLoggerTo(os.Stderr, format, level)
}

func InitLoggerTo(w io.Writer, format, level string) *slog.Logger {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
