package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("session opened")
	assert.Contains(t, buf.String(), "session opened")
}

func TestNewDefaultWriter(t *testing.T) {
	require.NotNil(t, New(nil, "info"))
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("store").Sub("summary")

	log.Info().Msg("renamed")
	out := buf.String()
	assert.Contains(t, out, "renamed")
	assert.Contains(t, out, `"subsystem":"summary"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")

	buf.Reset()
	log.Error().Msg("error msg")
	assert.Contains(t, buf.String(), "error msg")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSilentLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")

	log.Info().Msg("hidden")
	log.Error().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNewWithOptionsTeesToFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "uncover.log")

	log, err := NewWithOptions(Options{
		Level:        "info",
		File:         path,
		ConsoleStyle: "json",
		Console:      &console,
	})
	require.NoError(t, err)

	log.Info().Str("session", "Session 1").Msg("turn resolved")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "turn resolved")
	assert.Contains(t, console.String(), `"session":"Session 1"`)
}

func TestNewWithOptionsConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	log, err := NewWithOptions(Options{Level: "debug", Console: &console})
	require.NoError(t, err)

	log.Debug().Msg("pretty line")
	assert.Contains(t, console.String(), "pretty line")
	assert.NoError(t, log.Close())
}
