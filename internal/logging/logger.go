package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Logger struct {
	*zap.Logger
}

// New builds a logger in the given format: FormatJSON for machine
// consumption (CI hooks), anything else for an interactive console.
func New(format, level string) (*Logger, error) {
	if format == FormatJSON {
		return NewLogger(level)
	}
	return NewConsoleLogger(level)
}

// NewLogger builds a JSON logger at level, writing to stderr.
func NewLogger(level string) (*Logger, error) {
	return build(zap.NewProductionConfig(), level)
}

// NewConsoleLogger builds a human-readable logger for interactive use.
// Stdout stays reserved for gate output.
func NewConsoleLogger(level string) (*Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return build(config, level)
}

func build(config zap.Config, level string) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// WithRun scopes logger to a single gate run.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	if runID == "" {
		return logger
	}
	return logger.With(zap.String("run_id", runID))
}
