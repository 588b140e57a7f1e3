package bot

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/rs/zerolog"
)

// maxMessageLength is the Telegram limit for a single text message.
const maxMessageLength = 4096

// Handler turns Telegram updates into assistant exchanges.
type Handler struct {
	config      *config.Config
	responder   Responder
	images      ImageGenerator // nil when image generation is off
	transcriber Transcriber    // nil when transcription is off
	usage       UsageTracker
	prompts     *PromptCache
	inline      *InlineQueries
	files       *http.Client
	username    atomic.Pointer[string]
	logger      *zerolog.Logger
}

func NewHandler(
	cfg *config.Config,
	responder Responder,
	images ImageGenerator,
	transcriber Transcriber,
	usage UsageTracker,
	logger *zerolog.Logger,
) *Handler {
	return &Handler{
		config:      cfg,
		responder:   responder,
		images:      images,
		transcriber: transcriber,
		usage:       usage,
		prompts:     NewPromptCache(),
		inline:      NewInlineQueries(inlineQueryTTL),
		files:       &http.Client{Timeout: cfg.RequestTimeout},
		logger:      logger,
	}
}

// SetUsername tells the handler which bot it runs as, so commands
// addressed to other bots in a group are left alone.
func (h *Handler) SetUsername(name string) {
	name = strings.TrimPrefix(name, "@")
	h.username.Store(&name)
}

// Handle is the default handler registered with the Telegram client.
func (h *Handler) Handle(ctx context.Context, tg *tbot.Bot, update *models.Update) {
	h.Dispatch(ctx, tg, update)
}

// Dispatch routes an update to a command, the transcriber, the inline
// flow or the relay.
func (h *Handler) Dispatch(ctx context.Context, s Sender, update *models.Update) {
	if update == nil {
		return
	}
	switch {
	case update.InlineQuery != nil:
		h.inlineQuery(ctx, s, update.InlineQuery)
		return
	case update.CallbackQuery != nil:
		h.callbackQuery(ctx, s, update.CallbackQuery)
		return
	case update.Message == nil:
		// Edited messages and channel posts
		return
	}
	msg := update.Message
	userID, userName := sender(msg)

	if !h.config.IsAllowed(userID) {
		h.logger.Warn().
			Int64("chat_id", msg.Chat.ID).
			Int64("user_id", userID).
			Msg("user is not allowed")
		if !isGroup(msg) {
			h.reply(ctx, s, msg, h.config.Messages.Disallowed)
		}
		return
	}

	if cmd, mention, args := commandOf(msg.Text); cmd != "" {
		if !h.addressedToMe(mention) {
			return
		}
		h.command(ctx, s, msg, cmd, args)
		return
	}

	if m, ok := mediaOf(msg); ok {
		h.transcribe(ctx, s, msg, m)
		return
	}

	text := msg.Text
	if isGroup(msg) && h.config.GroupTriggerKeyword != "" {
		var ok bool
		if text, ok = stripTrigger(text, h.config.GroupTriggerKeyword); !ok {
			return
		}
	}

	h.relay(ctx, s, msg, userID, userName, text)
}

func (h *Handler) command(ctx context.Context, s Sender, msg *models.Message, cmd, args string) {
	chatID := msg.Chat.ID
	h.logger.Debug().Int64("chat_id", chatID).Str("command", cmd).Msg("command received")

	switch cmd {
	case "start":
		h.reply(ctx, s, msg, h.config.Messages.Start)
	case "help":
		h.reply(ctx, s, msg, h.config.Messages.Help)
	case "reset":
		h.responder.Reset(chatID)
		h.reply(ctx, s, msg, h.config.Messages.Reset)
	case "stats":
		h.stats(ctx, s, msg)
	case "resend":
		prompt, ok := h.prompts.Get(chatID)
		if !ok {
			h.reply(ctx, s, msg, h.config.Messages.ResendFailed)
			return
		}
		userID, userName := sender(msg)
		h.relay(ctx, s, msg, userID, userName, prompt)
	case "image":
		h.image(ctx, s, msg, args)
	case "chat":
		// Groups reach the bot without the trigger keyword this way.
		userID, userName := sender(msg)
		h.relay(ctx, s, msg, userID, userName, args)
	default:
		h.reply(ctx, s, msg, h.config.Messages.Unknown)
	}
}

// relay sends prompt to the assistant and the answer back to the chat the
// message came from.
func (h *Handler) relay(ctx context.Context, s Sender, msg *models.Message, userID int64, userName, prompt string) {
	chatID := msg.Chat.ID
	log := h.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("chat_id", chatID).
		Int64("user_id", userID).
		Logger()

	if strings.TrimSpace(prompt) == "" {
		h.reply(ctx, s, msg, h.config.Messages.EmptyPrompt)
		return
	}

	if !h.withinBudget(ctx, userID, &log) {
		h.reply(ctx, s, msg, h.config.Messages.BudgetLimit)
		return
	}

	h.prompts.Set(chatID, prompt)

	if _, err := s.SendChatAction(ctx, &tbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	}); err != nil {
		log.Debug().Err(err).Msg("unable to send typing action")
	}

	aiCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Msg("ai request sending")
	answer, err := h.responder.Reply(aiCtx, chatID, prompt)
	if err != nil {
		log.Error().Err(err).Msg("unable to generate ai response")
		h.reply(ctx, s, msg, h.config.Messages.Error)
		return
	}
	log.Info().Int("tokens", answer.TotalTokens).Msg("ai response received")

	if err := h.usage.AddChatTokens(ctx, userID, userName, answer.TotalTokens); err != nil {
		log.Error().Err(err).Msg("unable to record token usage")
	}

	h.reply(ctx, s, msg, answer.Text)
}

func (h *Handler) image(ctx context.Context, s Sender, msg *models.Message, prompt string) {
	chatID := msg.Chat.ID
	userID, userName := sender(msg)
	log := h.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("chat_id", chatID).
		Int64("user_id", userID).
		Logger()

	if h.images == nil {
		h.reply(ctx, s, msg, h.config.Messages.ImageOff)
		return
	}
	if prompt == "" {
		h.reply(ctx, s, msg, h.config.Messages.ImageEmpty)
		return
	}
	if !h.withinBudget(ctx, userID, &log) {
		h.reply(ctx, s, msg, h.config.Messages.BudgetLimit)
		return
	}

	if _, err := s.SendChatAction(ctx, &tbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionUploadPhoto,
	}); err != nil {
		log.Debug().Err(err).Msg("unable to send upload action")
	}

	aiCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	url, err := h.images.Generate(aiCtx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("unable to generate image")
		h.reply(ctx, s, msg, h.config.Messages.ImageFailed)
		return
	}

	if _, err := s.SendPhoto(ctx, &tbot.SendPhotoParams{
		ChatID:          chatID,
		Photo:           &models.InputFileString{Data: url},
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	}); err != nil {
		log.Error().Err(err).Msg("unable to send image")
		return
	}

	if err := h.usage.AddImage(ctx, userID, userName); err != nil {
		log.Error().Err(err).Msg("unable to record image usage")
	}
}

func (h *Handler) stats(ctx context.Context, s Sender, msg *models.Message) {
	userID, _ := sender(msg)
	conv := h.responder.Stats(msg.Chat.ID)

	usage, err := h.usage.Stats(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("unable to load usage")
		h.reply(ctx, s, msg, h.config.Messages.Error)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*This conversation:*\n💬 %d chat messages in history\n🔢 %d chat tokens in history\n", conv.Messages, conv.Tokens)
	fmt.Fprintf(&b, "\n*Usage today:*\n🔢 %d chat tokens used\n🖼 %d images generated\n🎙 %d seconds transcribed\n💵 $%.2f spent\n",
		usage.Today.Tokens, usage.Today.Images, usage.Today.TranscriptionSeconds, usage.Today.Cost)
	fmt.Fprintf(&b, "\n*Usage this month:*\n🔢 %d chat tokens used\n🖼 %d images generated\n🎙 %d seconds transcribed\n💵 $%.2f spent",
		usage.Month.Tokens, usage.Month.Images, usage.Month.TranscriptionSeconds, usage.Month.Cost)

	if !h.config.IsAdmin(userID) {
		left, err := h.usage.Remaining(ctx, userID)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("unable to compute remaining budget")
		} else if !math.IsInf(left, 1) {
			fmt.Fprintf(&b, "\n\n💰 Remaining %s budget: $%.2f", h.config.BudgetPeriod, math.Max(left, 0))
		}
	}

	h.reply(ctx, s, msg, b.String())
}

// withTimeout bounds a call to the AI backend.
func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, h.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// addressedToMe reports whether a command suffixed with @mention is for
// this bot. Until the bot knows its name every command is.
func (h *Handler) addressedToMe(mention string) bool {
	if mention == "" {
		return true
	}
	name := h.username.Load()
	if name == nil || *name == "" {
		return true
	}
	return strings.EqualFold(mention, *name)
}

// withinBudget lets admins through and fails open when usage cannot be read.
func (h *Handler) withinBudget(ctx context.Context, userID int64, log *zerolog.Logger) bool {
	if h.config.IsAdmin(userID) {
		return true
	}
	ok, err := h.usage.WithinBudget(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("unable to check budget")
		return true
	}
	return ok
}

// reply sends text to the chat of msg as a reply to it, split into
// Telegram-sized chunks. Markdown is tried first, plain text if Telegram
// rejects the entities.
func (h *Handler) reply(ctx context.Context, s Sender, msg *models.Message, text string) {
	chatID := msg.Chat.ID
	for i, chunk := range splitMessage(text, maxMessageLength) {
		params := &tbot.SendMessageParams{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: models.ParseModeMarkdownV1,
		}
		if i == 0 && msg.ID != 0 {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID:                msg.ID,
				AllowSendingWithoutReply: true,
			}
		}

		_, err := s.SendMessage(ctx, params)
		if err != nil && strings.Contains(err.Error(), "can't parse entities") {
			params.ParseMode = ""
			_, err = s.SendMessage(ctx, params)
		}
		if err != nil {
			h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("unable to send message")
			return
		}
	}
}

// splitMessage cuts text into pieces of at most limit characters.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

// commandOf splits a command into its name, the bot it is addressed to
// (the part after @, if any) and its arguments. Plain text yields an
// empty command.
func commandOf(text string) (cmd, mention, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", "", ""
	}

	name := text[1:]
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, args = name[:i], name[i:]
	}
	name, mention, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", ""
	}
	return strings.ToLower(name), mention, strings.TrimSpace(args)
}

// stripTrigger removes the group keyword from the start of text.
func stripTrigger(text, keyword string) (string, bool) {
	if len(text) < len(keyword) || !strings.EqualFold(text[:len(keyword)], keyword) {
		return "", false
	}
	return strings.TrimSpace(text[len(keyword):]), true
}

func isGroup(msg *models.Message) bool {
	return msg.Chat.Type == "group" || msg.Chat.Type == "supergroup"
}

func sender(msg *models.Message) (int64, string) {
	if msg.From == nil {
		return 0, ""
	}
	if msg.From.Username != "" {
		return msg.From.ID, msg.From.Username
	}
	return msg.From.ID, msg.From.FirstName
}
