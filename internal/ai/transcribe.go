package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyTranscript is returned when speech recognition finds no words.
var ErrEmptyTranscript = errors.New("empty transcript")

// Transcript is the text of a recording and how long the recording was.
type Transcript struct {
	Text    string
	Seconds float64
}

// Transcriber turns audio into text with Whisper.
type Transcriber struct {
	client *openai.Client
}

// NewTranscriber creates a speech-to-text client on the same credentials
// as the image client.
func NewTranscriber(token, baseURL string, httpClient *http.Client) *Transcriber {
	cfg := openai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &Transcriber{client: openai.NewClientWithConfig(cfg)}
}

// Transcribe reads a recording from r. The extension of name tells the
// API which container format it is in.
func (t *Transcriber) Transcribe(ctx context.Context, name string, r io.Reader) (Transcript, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: name,
		Reader:   r,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("transcription error: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	return Transcript{Text: text, Seconds: resp.Duration}, nil
}
