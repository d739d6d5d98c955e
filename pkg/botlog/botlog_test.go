package botlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	} {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	l := For("laser")
	l.Info().Int("shots", 3).Msg("fired")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "laser", line["component"])
	assert.Equal(t, "fired", line["message"])
	assert.EqualValues(t, 3, line["shots"])
}

func TestSetupWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := Setup("debug", dir)
	require.NoError(t, err)
	l := For("test")
	l.Info().Msg("hello")
	require.NoError(t, closer.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
