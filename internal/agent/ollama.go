package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
)

// OllamaQuerier implements Querier against a local Ollama server.
// OLLAMA_HOST selects the server. Ollama returns a single choice.
type OllamaQuerier struct {
	client *api.Client
	model  string
}

func NewOllamaQuerier(model string) (*OllamaQuerier, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	if client == nil {
		return nil, errors.New("ollama client is nil after initialization")
	}

	return &OllamaQuerier{
		client: client,
		model:  model,
	}, nil
}

// Query implements the Querier interface
func (q *OllamaQuerier) Query(ctx context.Context, messages []Message, opts QueryOptions) (QueryResult, error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		msgs = append(msgs, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model:    q.model,
		Messages: msgs,
		Stream:   &streamFalse,
		Options:  ollamaOptions(opts),
	}

	var result QueryResult
	resFn := func(resp api.ChatResponse) error {
		result.Content += resp.Message.Content
		result.InputTokens = resp.PromptEvalCount
		result.OutputTokens = resp.EvalCount
		return nil
	}

	if err := q.client.Chat(ctx, req, resFn); err != nil {
		return QueryResult{}, fmt.Errorf("ollama chat error: %w", err)
	}

	if result.Content == "" {
		return QueryResult{}, ErrNoChoices
	}

	result.Choices = []string{result.Content}
	result.TotalTokens = result.InputTokens + result.OutputTokens
	return result, nil
}

func ollamaOptions(opts QueryOptions) map[string]any {
	out := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		out["num_predict"] = opts.MaxTokens
	}
	if opts.PresencePenalty != 0 {
		out["presence_penalty"] = opts.PresencePenalty
	}
	if opts.FrequencyPenalty != 0 {
		out["frequency_penalty"] = opts.FrequencyPenalty
	}
	return out
}
