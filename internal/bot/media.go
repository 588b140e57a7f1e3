package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// media is a recording attached to a message.
type media struct {
	fileID   string
	uniqueID string
	duration int // seconds, as reported by Telegram
}

// mediaOf returns the voice note, audio or video attached to msg.
// Documents count when their MIME type is audio or video.
func mediaOf(msg *models.Message) (media, bool) {
	switch {
	case msg.Voice != nil:
		return media{msg.Voice.FileID, msg.Voice.FileUniqueID, msg.Voice.Duration}, true
	case msg.Audio != nil:
		return media{msg.Audio.FileID, msg.Audio.FileUniqueID, msg.Audio.Duration}, true
	case msg.Video != nil:
		return media{msg.Video.FileID, msg.Video.FileUniqueID, msg.Video.Duration}, true
	case msg.VideoNote != nil:
		return media{msg.VideoNote.FileID, msg.VideoNote.FileUniqueID, msg.VideoNote.Duration}, true
	case msg.Document != nil:
		mime := msg.Document.MimeType
		if strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/") {
			return media{fileID: msg.Document.FileID, uniqueID: msg.Document.FileUniqueID}, true
		}
	}
	return media{}, false
}

// transcribe turns a recording into text and, unless only the transcript
// is wanted, relays that text to the assistant.
func (h *Handler) transcribe(ctx context.Context, s Sender, msg *models.Message, m media) {
	chatID := msg.Chat.ID
	userID, userName := sender(msg)
	log := h.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("chat_id", chatID).
		Int64("user_id", userID).
		Str("file_unique_id", m.uniqueID).
		Logger()

	if h.transcriber == nil {
		return
	}
	if isGroup(msg) && h.config.IgnoreGroupTranscriptions {
		log.Debug().Msg("ignoring recording sent to a group")
		return
	}
	if !h.withinBudget(ctx, userID, &log) {
		h.reply(ctx, s, msg, h.config.Messages.BudgetLimit)
		return
	}

	if _, err := s.SendChatAction(ctx, &tbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	}); err != nil {
		log.Debug().Err(err).Msg("unable to send typing action")
	}

	aiCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	file, err := s.GetFile(aiCtx, &tbot.GetFileParams{FileID: m.fileID})
	if err != nil {
		log.Error().Err(err).Msg("unable to look up recording")
		h.reply(ctx, s, msg, h.config.Messages.DownloadFailed)
		return
	}

	resp, err := h.download(aiCtx, s.FileDownloadLink(file))
	if err != nil {
		log.Error().Err(err).Msg("unable to download recording")
		h.reply(ctx, s, msg, h.config.Messages.DownloadFailed)
		return
	}
	defer resp.Body.Close()

	name := path.Base(file.FilePath)
	if file.FilePath == "" {
		name = m.uniqueID
	}

	log.Info().Str("file", name).Msg("transcription request sending")
	transcript, err := h.transcriber.Transcribe(aiCtx, name, resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("unable to transcribe recording")
		h.reply(ctx, s, msg, h.config.Messages.TranscribeFailed)
		return
	}

	seconds := transcript.Seconds
	if seconds <= 0 {
		seconds = float64(m.duration)
	}
	if err := h.usage.AddTranscription(ctx, userID, userName, seconds); err != nil {
		log.Error().Err(err).Msg("unable to record transcription usage")
	}

	heading := fmt.Sprintf("_%s:_\n\"%s\"", h.config.Messages.Transcript, transcript.Text)
	if h.config.TranscriptOnly {
		h.reply(ctx, s, msg, heading)
		return
	}

	h.prompts.Set(chatID, transcript.Text)
	answer, err := h.responder.Reply(aiCtx, chatID, transcript.Text)
	if err != nil {
		log.Error().Err(err).Msg("unable to generate ai response")
		h.reply(ctx, s, msg, heading+"\n\n"+h.config.Messages.Error)
		return
	}
	if err := h.usage.AddChatTokens(ctx, userID, userName, answer.TotalTokens); err != nil {
		log.Error().Err(err).Msg("unable to record token usage")
	}

	h.reply(ctx, s, msg, fmt.Sprintf("%s\n\n_%s:_\n%s", heading, h.config.Messages.Answer, answer.Text))
}

// download fetches a file from Telegram's file server. The link carries
// the bot token, so errors never include it.
func (h *Handler) download(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.New("invalid file link")
	}
	resp, err := h.files.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("file download failed: %w", uerr.Err)
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}
