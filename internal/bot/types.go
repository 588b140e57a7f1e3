package bot

import (
	"context"
	"io"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/j0lvera/relaybot/internal/ai"
	"github.com/j0lvera/relaybot/internal/usage"
)

// Sender is the part of the Telegram client the handlers use.
type Sender interface {
	SendMessage(ctx context.Context, params *tbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tbot.SendChatActionParams) (bool, error)
	SendPhoto(ctx context.Context, params *tbot.SendPhotoParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tbot.EditMessageTextParams) (*models.Message, error)
	AnswerInlineQuery(ctx context.Context, params *tbot.AnswerInlineQueryParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *tbot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *tbot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

var _ Sender = (*tbot.Bot)(nil)

// Responder produces the answer to a prompt within a chat's conversation.
type Responder interface {
	Reply(ctx context.Context, chatID int64, prompt string) (agent.Answer, error)
	Reset(chatID int64)
	Stats(chatID int64) agent.ConversationStats
}

var _ Responder = (*agent.Assistant)(nil)

// ImageGenerator turns a prompt into an image URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, r io.Reader) (ai.Transcript, error)
}

var _ Transcriber = (*ai.Transcriber)(nil)

// UsageTracker records and reports what users spend.
type UsageTracker interface {
	AddChatTokens(ctx context.Context, userID int64, userName string, tokens int) error
	AddImage(ctx context.Context, userID int64, userName string) error
	AddTranscription(ctx context.Context, userID int64, userName string, seconds float64) error
	Stats(ctx context.Context, userID int64) (usage.Stats, error)
	Remaining(ctx context.Context, userID int64) (float64, error)
	WithinBudget(ctx context.Context, userID int64) (bool, error)
}

var _ UsageTracker = (*usage.Tracker)(nil)
