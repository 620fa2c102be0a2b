// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Setup points the global logger at w (stderr when nil) and applies the
// level. Console output is used unless format is "json". Under systemd
// (JOURNAL_STREAM set) console output is written without colors.
func Setup(w io.Writer, level, format string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if w == nil {
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(format) {
	case FormatJSON:
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	case FormatConsole, "":
		_, underSystemd := os.LookupEnv("JOURNAL_STREAM")
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: underSystemd})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}
