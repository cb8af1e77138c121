package logging

import (
	"testing"

	"dca-vault/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for name, want := range cases {
		require.Equal(t, want, Level(name), "level %q", name)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	log := New(config.LoggingConfig{Level: "warn", Format: "console"})
	require.False(t, log.Core().Enabled(zapcore.InfoLevel), "info should be disabled at warn level")
	require.True(t, log.Core().Enabled(zapcore.ErrorLevel), "error should be enabled at warn level")
}
