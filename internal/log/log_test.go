package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	require.NoError(t, Init(Options{Level: LevelInfo}))
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden debug")
	Info("refreshed", "events", 3)
	Error("load failed", errors.New("boom"), "source", "events.yaml")

	out := buf.String()
	assert.NotContains(t, out, "hidden debug")
	assert.Contains(t, out, "refreshed")
	assert.Contains(t, out, "events=3")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "source=events.yaml")

	buf.Reset()
	SetLevel(LevelError)
	Warn("dropped warning")
	assert.Empty(t, buf.String())

	SetLevel(LevelDebug)
	Debug("visible debug")
	assert.Contains(t, buf.String(), "visible debug")
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trackmyevents.log")
	require.NoError(t, Init(Options{Level: LevelDebug, File: path}))
	t.Cleanup(func() { _ = Init(Options{Level: LevelInfo}) })

	Info("written to file", "k", "v")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
