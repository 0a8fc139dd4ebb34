// Package logger provides a global logger for the application
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// LevelForEnvironment maps ENVIRONMENT to a default log level.
func LevelForEnvironment(environment string) zerolog.Level {
	switch strings.ToLower(environment) {
	case "dev", "test":
		return zerolog.TraceLevel
	case "", "prod":
		return zerolog.InfoLevel
	default:
		log.Warn().Str("environment", environment).Msg("Unknown environment - defaulting to production log level (info and above)")
		return zerolog.InfoLevel
	}
}

func initLogger(out io.Writer, environment, level string) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out}).With().Caller().Logger()

	logLevel := LevelForEnvironment(environment)
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			log.Warn().Str("level", level).Msg("Unknown log level flag - keeping environment level")
		} else {
			logLevel = parsed
			log.Debug().Str("level", level).Msg("Log level flag detected - overriding environment log level")
		}
	}

	// Apply the log level globally
	zerolog.SetGlobalLevel(logLevel)

	switch logLevel {
	case zerolog.DebugLevel:
		log.Debug().Str("environment", environment).Msg("Debug logging enabled")
	case zerolog.TraceLevel:
		log.Trace().Str("environment", environment).Msg("Trace logging enabled")
	}
}

// Init sets up the global zerolog logger with console output on stderr.
// The level comes from the environment unless level names one explicitly.
// Example usage:
//
//	logger.Init(cfg.Environment, logLevel) <- inside whichever entrypoint
//
// Then, `socialchoice score --input ballots.soc --log-level debug`
func Init(environment, level string) {
	initLogger(os.Stderr, environment, level)
}
