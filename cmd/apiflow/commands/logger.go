package commands

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// zerologAdapter bridges zerolog to the engine's Logger interface.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewCLILogger builds the CLI's structured logger. Without verbose,
// only warnings and errors reach the terminal.
func NewCLILogger(verbose bool) apiflow.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return &zerologAdapter{logger: logger}
}

func (a *zerologAdapter) Debug(msg string, fields map[string]interface{}) {
	a.logger.Debug().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields map[string]interface{}) {
	a.logger.Info().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Warn(msg string, fields map[string]interface{}) {
	a.logger.Warn().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Error(msg string, fields map[string]interface{}) {
	a.logger.Error().Fields(fields).Msg(msg)
}
