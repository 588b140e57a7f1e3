package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

const (
	// inlineQueryTTL is how long an offered inline result can be answered.
	inlineQueryTTL = time.Hour

	// minInlineQuery keeps half-typed inline queries from being offered.
	minInlineQuery = 3

	callbackPrefix = "gpt:"
)

// inlineQuery offers the typed question as a result carrying a button.
// Pressing it sends a callback that gets the question answered.
func (h *Handler) inlineQuery(ctx context.Context, s Sender, q *models.InlineQuery) {
	if utf8.RuneCountInString(q.Query) < minInlineQuery {
		return
	}

	var userID int64
	if q.From != nil {
		userID = q.From.ID
	}
	log := h.logger.With().Str("inline_query_id", q.ID).Int64("user_id", userID).Logger()

	id := uuid.NewString()
	result := &models.InlineQueryResultArticle{
		ID:                  id,
		Title:               h.config.Messages.InlineTitle,
		Description:         q.Query,
		InputMessageContent: &models.InputTextMessageContent{MessageText: q.Query},
	}

	switch {
	case !h.config.IsAllowed(userID):
		result.Description = h.config.Messages.Disallowed
		result.InputMessageContent = &models.InputTextMessageContent{MessageText: h.config.Messages.Disallowed}
	case !h.withinBudget(ctx, userID, &log):
		result.Description = h.config.Messages.BudgetLimit
		result.InputMessageContent = &models.InputTextMessageContent{MessageText: h.config.Messages.BudgetLimit}
	default:
		h.inline.Add(id, q.Query)
		result.ReplyMarkup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: h.config.Messages.InlineButton, CallbackData: callbackPrefix + id},
			}},
		}
	}

	if _, err := s.AnswerInlineQuery(ctx, &tbot.AnswerInlineQueryParams{
		InlineQueryID: q.ID,
		Results:       []models.InlineQueryResult{result},
		IsPersonal:    true,
	}); err != nil {
		log.Error().Err(err).Msg("unable to answer inline query")
	}
}

// callbackQuery answers a question picked from the inline results by
// editing the message it was posted as. The conversation is the user's own.
func (h *Handler) callbackQuery(ctx context.Context, s Sender, q *models.CallbackQuery) {
	userID := q.From.ID
	userName := q.From.Username
	if userName == "" {
		userName = q.From.FirstName
	}
	log := h.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("user_id", userID).
		Logger()

	if _, err := s.AnswerCallbackQuery(ctx, &tbot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}); err != nil {
		log.Debug().Err(err).Msg("unable to acknowledge callback")
	}

	id, ok := strings.CutPrefix(q.Data, callbackPrefix)
	if !ok || q.InlineMessageID == "" {
		return
	}

	question, ok := h.inline.Take(id)
	if !ok {
		h.edit(ctx, s, q.InlineMessageID, h.config.Messages.Error)
		return
	}
	if !h.config.IsAllowed(userID) {
		h.edit(ctx, s, q.InlineMessageID, h.config.Messages.Disallowed)
		return
	}
	if !h.withinBudget(ctx, userID, &log) {
		h.edit(ctx, s, q.InlineMessageID, h.config.Messages.BudgetLimit)
		return
	}

	answered := func(text string) string {
		return fmt.Sprintf("%s\n\n_%s:_\n%s", question, h.config.Messages.Answer, text)
	}
	h.edit(ctx, s, q.InlineMessageID, answered(h.config.Messages.Loading))

	aiCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Msg("ai request sending for inline query")
	answer, err := h.responder.Reply(aiCtx, userID, question)
	if err != nil {
		log.Error().Err(err).Msg("unable to generate ai response")
		h.edit(ctx, s, q.InlineMessageID, answered(h.config.Messages.Error))
		return
	}

	if err := h.usage.AddChatTokens(ctx, userID, userName, answer.TotalTokens); err != nil {
		log.Error().Err(err).Msg("unable to record token usage")
	}

	h.edit(ctx, s, q.InlineMessageID, answered(answer.Text))
}

// edit replaces the text of an inline message. Inline messages cannot be
// split, so text is cut at the Telegram limit.
func (h *Handler) edit(ctx context.Context, s Sender, inlineMessageID, text string) {
	if utf8.RuneCountInString(text) > maxMessageLength {
		text = string([]rune(text)[:maxMessageLength])
	}

	params := &tbot.EditMessageTextParams{
		InlineMessageID: inlineMessageID,
		Text:            text,
		ParseMode:       models.ParseModeMarkdownV1,
	}
	_, err := s.EditMessageText(ctx, params)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		params.ParseMode = ""
		_, err = s.EditMessageText(ctx, params)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("inline_message_id", inlineMessageID).Msg("unable to edit message")
	}
}
