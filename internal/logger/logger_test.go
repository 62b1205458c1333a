package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "engram.log")

	l, err := New(Config{
		Level: "debug",
		File:  logFile,
	})
	require.NoError(t, err)
	defer l.Close()

	zl := l.Zerolog()
	zl.Info().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	l, err := New(Config{Level: "bogus", Console: true})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "info", l.Zerolog().GetLevel().String())
}

func TestNew_RedactionApplied(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "engram.log")

	l, err := New(Config{
		Level:     "info",
		File:      logFile,
		Redaction: true,
	})
	require.NoError(t, err)
	defer l.Close()

	zl := l.Zerolog()
	zl.Info().Msg("stored content for carol@example.net")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "carol@example.net")
	assert.Contains(t, string(data), "[REDACTED]")
}
