package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogUpdates(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	var handled *models.Update
	next := func(_ context.Context, _ *tbot.Bot, update *models.Update) {
		handled = update
	}

	update := &models.Update{
		ID: 42,
		Message: &models.Message{
			Chat: models.Chat{ID: 7},
			From: &models.User{ID: 9},
		},
	}
	logUpdates(&log)(next)(context.Background(), nil, update)

	assert.Same(t, update, handled)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "update handled", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 42, entry["update_id"])
	assert.EqualValues(t, 7, entry["chat_id"])
	assert.EqualValues(t, 9, entry["user_id"])
	assert.Contains(t, entry, "took")
}

func TestLogUpdates_WithoutMessage(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	called := false
	next := func(context.Context, *tbot.Bot, *models.Update) { called = true }

	logUpdates(&log)(next)(context.Background(), nil, &models.Update{ID: 5})

	assert.True(t, called)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 5, entry["update_id"])
	assert.NotContains(t, entry, "chat_id")
	assert.NotContains(t, entry, "user_id")
}
