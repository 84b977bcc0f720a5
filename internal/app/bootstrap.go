package app

import (
	"io"
	"log/slog"
	"os"

	"hubrelay/internal/config"
)

// LoadConfig loads configuration, resolving _SSM_PARAM pointers through
// Parameter Store in the region named by AWS_REGION.
func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
}

// NewLogger returns a JSON logger on stdout at the given level.
func NewLogger(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
