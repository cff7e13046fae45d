package rangeutil

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger for console output.
func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLogOutput redirects the global logger, mainly for tests.
func SetLogOutput(w io.Writer) {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// GetLogger returns a component-scoped child logger.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
