// Package logging installs the process-wide structured logger for the
// identity engine. Every package logs through log/slog; this is the only
// place that decides how those records are rendered.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup replaces slog's default logger with a tint handler on stderr. The
// level comes from LOG_LEVEL (debug, info, warn, error; default info), and
// color is dropped when stderr is not a terminal, so piped or collected
// output stays free of escape codes.
func Setup() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      Level(),
			TimeFormat: time.Kitchen,
			AddSource:  true,
			NoColor:    !isatty.IsTerminal(w.Fd()),
		}),
	))
}

// Level reports the log level configured through LOG_LEVEL. Unknown values
// fall back to info rather than failing startup.
func Level() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
