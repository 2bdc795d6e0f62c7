package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		format string
		level  string
		debug  bool
	}{
		{"json", FormatJSON, "debug", true},
		{"console", FormatConsole, "warn", false},
		{"unknown format falls back to console", "", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.format, tt.level)
			require.NoError(t, err)
			require.NotNil(t, l.Logger)
			assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
		})
	}

	_, err := NewLogger("loud")
	assert.Error(t, err)
	_, err = NewConsoleLogger("loud")
	assert.Error(t, err)
}

func TestWithRun(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithRun(base, "0192-run").Info("scoped")
	WithRun(base, "").Info("unscoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "0192-run", entries[0].ContextMap()["run_id"])
	assert.NotContains(t, entries[1].ContextMap(), "run_id")
}
