// Package logging sets up the zerolog logger used by the autoi18n CLI.
//
// Output is human-readable on a terminal and JSON otherwise, or whenever
// LOG_FORMAT=json. LOG_LEVEL picks the level; NO_COLOR disables colors.
// Library packages do not log: they report through callbacks, and
// Printf adapts a logger to those callbacks.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = New(os.Stderr, false)

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l zerolog.Logger) {
	defaultLogger = l
}

// New returns a logger writing to w. verbose lowers the level to debug
// unless LOG_LEVEL says otherwise.
func New(w io.Writer, verbose bool) zerolog.Logger {
	if isTerminal(w) && os.Getenv("LOG_FORMAT") != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return zerolog.New(w).
		Level(levelFromEnv(verbose)).
		With().
		Timestamp().
		Logger()
}

// Printf returns a printf-style function logging at level.
func Printf(l *zerolog.Logger, level zerolog.Level) func(format string, args ...any) {
	return func(format string, args ...any) {
		l.WithLevel(level).Msg(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
	}
}

func levelFromEnv(verbose bool) zerolog.Level {
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if level, err := zerolog.ParseLevel(s); err == nil {
			return level
		}
	}
	if verbose || os.Getenv("DEBUG") != "" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
