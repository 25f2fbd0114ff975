package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
)

// Debug controls whether debug logs are printed.
var Debug bool

var level = new(slog.LevelVar)

// Setup installs the default slog handler on stderr. With debug set, Debug
// records and Debugf output are enabled.
func Setup(debug bool) {
	SetupTo(os.Stderr, debug)
}

// SetupTo is Setup writing to w.
func SetupTo(w io.Writer, debug bool) {
	Debug = debug
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// For returns a logger tagged with the package name.
func For(pkg string) *slog.Logger {
	return slog.Default().With("package", pkg)
}

// Debugf logs a formatted debug message when Debug is enabled.
func Debugf(format string, v ...any) {
	if Debug {
		log.Printf("DEBUG: "+format, v...)
	}
}
