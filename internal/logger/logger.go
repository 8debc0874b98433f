package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. level falls back to debug in development
// and info elsewhere when empty or unparseable.
func New(env, level string) zerolog.Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "dispatch-service").Logger()
	if env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	return log.Level(parseLevel(env, level))
}

func parseLevel(env, level string) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		return lvl
	}
	if env == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
