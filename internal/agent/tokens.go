package agent

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many prompt tokens a history costs.
type TokenCounter interface {
	Count(messages []Message) int
}

// tiktokenCounter follows the chat-completion accounting from the OpenAI
// cookbook: every message costs 4 tokens of framing, every reply is primed
// with 2 more.
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter returns a tiktoken counter for model, or an estimate of
// one token per four characters when the encoding cannot be loaded.
func NewTokenCounter(model string) (TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return approxCounter{}, err
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += 4
		total += len(c.enc.Encode(string(msg.Role), nil, nil))
		total += len(c.enc.Encode(msg.Content, nil, nil))
	}
	return total + 2
}

type approxCounter struct{}

func (approxCounter) Count(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += 4 + (len(msg.Role)+len(msg.Content)+3)/4
	}
	return total + 2
}

// contextWindow returns the token limit of a model family.
func contextWindow(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4-turbo"), strings.HasPrefix(m, "gpt-4.1"):
		return 128000
	case strings.HasPrefix(m, "gpt-4-32k"):
		return 32768
	case strings.HasPrefix(m, "gpt-4"):
		return 8192
	case strings.HasPrefix(m, "gpt-3.5-turbo-16k"), m == "gpt-3.5-turbo-1106", m == "gpt-3.5-turbo-0125":
		return 16385
	default:
		return 4096
	}
}
