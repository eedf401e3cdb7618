package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}

func TestNewWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Env: "production", Level: "info", Out: &buf})

	log.With(map[string]string{"file": "a.xlsx"}).Info().Int("rows", 3).Msg("read")
	log.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "read", entry["message"])
	assert.Equal(t, "a.xlsx", entry["file"])
	assert.EqualValues(t, 3, entry["rows"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Error().Msg("nothing") })
}
