package agent

import (
	"context"
	"testing"
	"time"

	"github.com/j0lvera/relaybot/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestNew_BuildsAssistantFromConfig(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	q := &fakeQuerier{respond: reply("hello")}
	cfg := &config.Config{
		Provider:           config.ProviderOpenAI,
		Model:              "gpt-3.5-turbo",
		Temperature:        0.2,
		MaxTokens:          100,
		NChoices:           1,
		MaxHistorySize:     15,
		MaxConversationAge: time.Hour,
		Prompts:            config.DefaultPrompts,
	}

	res, err := New(lc, Params{Config: cfg, Querier: q, Logger: zerolog.Nop()})
	require.NoError(t, err)

	lc.RequireStart()
	defer lc.RequireStop()

	answer, err := res.Assistant.Reply(context.Background(), 5, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", answer.Text)

	history := res.Store.History(5)
	require.Len(t, history, 3)
	assert.Equal(t, config.DefaultPrompts.Assistant, history[0].Content)

	require.Len(t, q.calls, 1)
	assert.Equal(t, QueryOptions{Temperature: 0.2, MaxTokens: 100, N: 1}, q.calls[0].Opts)
}
