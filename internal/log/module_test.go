package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, true)

	logger.Info().Int64("chat_id", 42).Msg("relayed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "relayed", entry["message"])
	assert.EqualValues(t, 42, entry["chat_id"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, false, true).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, newLogger(&buf, true, true).GetLevel())

	logger := newLogger(&buf, false, true)
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
