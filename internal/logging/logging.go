package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Debug controls whether debug logs are printed.
var Debug bool

// Log is the process-wide logger. It writes nothing until Setup is called.
var Log = zerolog.Nop()

// Setup configures Log. Format "console" gives human-readable output,
// anything else emits JSON lines.
func Setup(w io.Writer, format string, debug bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	Debug = debug
	Log = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return Log
}

// Debugf logs a formatted debug message when Debug is enabled.
func Debugf(format string, v ...any) {
	if Debug {
		Log.Debug().Msgf(format, v...)
	}
}

// With returns a child logger tagged with a component name.
func With(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
