// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevelEnv overrides the level chosen by QuietLogs, e.g. PKEMU_TEST_LOG_LEVEL=debug
const LogLevelEnv = "PKEMU_TEST_LOG_LEVEL"

// QuietLogs sets the global log level to error, or to $PKEMU_TEST_LOG_LEVEL,
// and restores the previous level and logger when the test ends.
func QuietLogs(t testing.TB) {
	t.Helper()
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	zerolog.SetGlobalLevel(ParseLogLevel(zerolog.ErrorLevel))
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
}

// ParseLogLevel parses the level from the environment or returns defaultLevel
func ParseLogLevel(defaultLevel zerolog.Level) zerolog.Level {
	levelStr := os.Getenv(LogLevelEnv)
	if levelStr == "" {
		return defaultLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return defaultLevel
	}
	return level
}
