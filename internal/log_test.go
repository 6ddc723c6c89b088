package internal

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel(" trace "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogOptions{Level: "info", Format: "json", Service: "curiesuite", Writer: &buf})
	filterLog := Component(log, "hitfilter")
	filterLog.Info().Int("accepted", 3).Msg("filter complete")
	log.Debug().Msg("dropped")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "curiesuite", entry["service"])
	assert.Equal(t, "hitfilter", entry["component"])
	assert.Equal(t, float64(3), entry["accepted"])
	assert.Equal(t, "filter complete", entry["message"])
}
