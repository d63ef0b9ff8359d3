package tally

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetLogger returns a zerolog.Logger configured to the given verbosity level string.
// If verbosity is empty or unparseable, the global logger is returned unchanged.
// The result is tagged with component so output from the registry and the
// reporter can be told apart.
func GetLogger(component, verbosity string) zerolog.Logger {
	logger := log.With().Str("component", component).Logger()
	if verbosity == "" {
		return logger
	}

	level, err := zerolog.ParseLevel(verbosity)
	if err != nil {
		return logger
	}

	return logger.Level(level)
}
