package zerolog

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

func init() {
	InitDefaultLogger()
}

func InitLogger(debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	InitDefaultLogger()
}

func InitDefaultLogger() {
	loggerVal := log.With().Caller().Logger()
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.DefaultContextLogger = &loggerVal
	log.Logger = loggerVal
}

// InitConsoleLogger switches the global logger to human-readable
// console output. Used by the CLI when not running as a service.
func InitConsoleLogger(debug bool) {
	InitLogger(debug)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
