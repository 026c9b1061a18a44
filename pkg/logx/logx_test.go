package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" debug ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARNING", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus", zerolog.InfoLevel))
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf)).With(String("assessment_id", "abc"))
	l.Info("done", Int("samples", 3), Err(errors.New("x")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "done", m["message"])
	assert.Equal(t, "abc", m["assessment_id"])
	assert.EqualValues(t, 3, m["samples"])
	assert.True(t, strings.HasPrefix(m["caller"].(string), "logx_test.go:"))
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("dropped")
	assert.False(t, Nop().IsZero())
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path, MaxSizeMB: 1}})
	log.Debug("hello file", String("k", "v"))
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"hello file"`)
	assert.Contains(t, string(b), `"k":"v"`)
}

func TestServiceApplyChangesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	assert.False(t, log.Enabled(LevelDebug))
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	assert.True(t, log.Enabled(LevelDebug))
}
