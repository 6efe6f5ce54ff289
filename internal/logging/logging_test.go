package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/config"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.Log{Level: "info", Format: config.FormatJSON}, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Debug().Msg("hidden")
	l.Info().Str("group", "verbs").Msg("loaded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "verbs", line["group"])
	assert.Equal(t, "loaded", line["message"])
	assert.Contains(t, line, "time")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.Log{Level: "debug", Format: config.FormatConsole}, &buf)
	require.NoError(t, err)

	l.Debug().Str("group", "verbs").Msg("loaded")
	out := buf.String()
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "group=verbs")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.Log{Level: "", Format: config.FormatJSON}, &buf)
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Verbose()
	l.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFileReceivesJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "mpcompat.log")
	l, err := New(config.Log{Level: "info", Format: config.FormatConsole, File: path}, &buf)
	require.NoError(t, err)

	l.Error().Str("event", "group_failed").Msg("activation failed")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "group_failed", line["event"])
	assert.Contains(t, buf.String(), "activation failed")
}
