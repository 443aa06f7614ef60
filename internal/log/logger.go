// Package log builds the zerolog loggers shared by the CLI and the dev backend.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New logs to stderr so stdout stays clean for command output.
func New(level string) *zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter returns a human-readable logger on w. NO_COLOR disables colors.
func NewWithWriter(w io.Writer, level string) *zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05.000",
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
	logger := zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
	return &logger
}

// parseLevel accepts zerolog level names plus "warning" and "off".
// Anything unrecognised logs at info.
func parseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "off", "none":
		return zerolog.Disabled
	case "warning":
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
