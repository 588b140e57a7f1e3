package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inlineUpdate(userID int64, query string) *models.Update {
	return &models.Update{
		ID: 2,
		InlineQuery: &models.InlineQuery{
			ID:    "iq1",
			From:  &models.User{ID: userID, Username: "ann"},
			Query: query,
		},
	}
}

func callbackUpdate(userID int64, data string) *models.Update {
	return &models.Update{
		ID: 3,
		CallbackQuery: &models.CallbackQuery{
			ID:              "cb1",
			From:            models.User{ID: userID, Username: "ann"},
			InlineMessageID: "im1",
			Data:            data,
		},
	}
}

// offered returns the single article the bot answered an inline query with.
func offered(t *testing.T, s *fakeSender) *models.InlineQueryResultArticle {
	t.Helper()

	require.Len(t, s.inline, 1)
	require.Len(t, s.inline[0].Results, 1)
	article, ok := s.inline[0].Results[0].(*models.InlineQueryResultArticle)
	require.True(t, ok)
	return article
}

func TestInlineQuery_OffersAnswerButton(t *testing.T) {
	h := newHarness(testConfig(), answer("unused"), nil)

	h.handler.Dispatch(context.Background(), h.sender, inlineUpdate(1, "what is go"))

	assert.Equal(t, "iq1", h.sender.inline[0].InlineQueryID)
	assert.True(t, h.sender.inline[0].IsPersonal)

	article := offered(t, h.sender)
	assert.Equal(t, config.DefaultMessages.InlineTitle, article.Title)
	assert.Equal(t, "what is go", article.Description)
	assert.Equal(t, &models.InputTextMessageContent{MessageText: "what is go"}, article.InputMessageContent)

	markup, ok := article.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	assert.Equal(t, callbackPrefix+article.ID, markup.InlineKeyboard[0][0].CallbackData)
	assert.Empty(t, h.responder.calls)
}

func TestInlineQuery_TooShort(t *testing.T) {
	h := newHarness(testConfig(), answer("unused"), nil)

	h.handler.Dispatch(context.Background(), h.sender, inlineUpdate(1, "go"))

	assert.Empty(t, h.sender.inline)
}

func TestInlineQuery_Refusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(cfg *config.Config, u *fakeUsage)
		want  string
	}{
		{
			name:  "not allowed",
			setup: func(cfg *config.Config, _ *fakeUsage) { cfg.AllowedUserIDs = []int64{2} },
			want:  config.DefaultMessages.Disallowed,
		},
		{
			name:  "over budget",
			setup: func(_ *config.Config, u *fakeUsage) { u.overLimit = true },
			want:  config.DefaultMessages.BudgetLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(testConfig(), answer("unused"), nil)
			tt.setup(h.handler.config, h.usage)

			h.handler.Dispatch(context.Background(), h.sender, inlineUpdate(1, "what is go"))

			article := offered(t, h.sender)
			assert.Equal(t, tt.want, article.Description)
			assert.Nil(t, article.ReplyMarkup)
		})
	}
}

func TestCallbackQuery_AnswersInlineMessage(t *testing.T) {
	var chats []int64
	h := newHarness(testConfig(), func(_ context.Context, chatID int64, _ string) (agent.Answer, error) {
		chats = append(chats, chatID)
		return agent.Answer{Text: "A language.", TotalTokens: 20}, nil
	}, nil)

	h.handler.Dispatch(context.Background(), h.sender, inlineUpdate(1, "what is go"))
	article := offered(t, h.sender)

	h.handler.Dispatch(context.Background(), h.sender, callbackUpdate(1, callbackPrefix+article.ID))

	assert.Equal(t, []string{"cb1"}, h.sender.acks)
	assert.Equal(t, []string{"what is go"}, h.responder.calls)
	assert.Equal(t, []int64{1}, chats)
	assert.Equal(t, []string{
		"what is go\n\n_Answer:_\nLoading...",
		"what is go\n\n_Answer:_\nA language.",
	}, h.sender.editTexts())
	assert.Equal(t, "im1", h.sender.edits[1].InlineMessageID)
	assert.Equal(t, 20, h.usage.tokens[1])

	// The button works once.
	h.handler.Dispatch(context.Background(), h.sender, callbackUpdate(1, callbackPrefix+article.ID))
	assert.Len(t, h.responder.calls, 1)
	assert.Equal(t, config.DefaultMessages.Error, h.sender.editTexts()[2])
}

func TestCallbackQuery_Failures(t *testing.T) {
	h := newHarness(testConfig(), func(context.Context, int64, string) (agent.Answer, error) {
		return agent.Answer{}, errors.New("upstream down")
	}, nil)

	h.handler.Dispatch(context.Background(), h.sender, callbackUpdate(1, callbackPrefix+"unknown"))
	assert.Equal(t, []string{config.DefaultMessages.Error}, h.sender.editTexts())

	h.handler.Dispatch(context.Background(), h.sender, inlineUpdate(1, "what is go"))
	article := offered(t, h.sender)
	h.handler.Dispatch(context.Background(), h.sender, callbackUpdate(1, callbackPrefix+article.ID))

	edits := h.sender.editTexts()
	assert.Equal(t, "what is go\n\n_Answer:_\n"+config.DefaultMessages.Error, edits[len(edits)-1])
	assert.Zero(t, h.usage.tokens[1])
}

func TestCallbackQuery_IgnoresOtherButtons(t *testing.T) {
	h := newHarness(testConfig(), answer("unused"), nil)

	h.handler.Dispatch(context.Background(), h.sender, callbackUpdate(1, "something-else"))

	assert.Equal(t, []string{"cb1"}, h.sender.acks)
	assert.Empty(t, h.sender.edits)
	assert.Empty(t, h.responder.calls)
}

func TestInlineQueries_Expire(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	q := NewInlineQueries(time.Hour)
	q.now = func() time.Time { return now }

	q.Add("a", "first")
	q.Add("b", "second")

	got, ok := q.Take("a")
	require.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = q.Take("a")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = q.Take("b")
	assert.False(t, ok)

	q.Add("c", "third")
	assert.Len(t, q.queries, 1)
}
