package testutil

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, zerolog.WarnLevel, ParseLogLevel(zerolog.WarnLevel))

	t.Setenv(LogLevelEnv, "debug")
	assert.Equal(t, zerolog.DebugLevel, ParseLogLevel(zerolog.WarnLevel))

	t.Setenv(LogLevelEnv, "chatty")
	assert.Equal(t, zerolog.WarnLevel, ParseLogLevel(zerolog.WarnLevel))
}

func TestQuietLogsRestores(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	prev := zerolog.GlobalLevel()

	t.Run("Inner", func(t *testing.T) {
		QuietLogs(t)
		assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	})
	assert.Equal(t, prev, zerolog.GlobalLevel())
}
