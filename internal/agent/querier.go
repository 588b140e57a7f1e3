package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// QueryOptions tune a single completion request.
type QueryOptions struct {
	Temperature      float64
	MaxTokens        int
	N                int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// QueryResult holds the response and token usage from an LLM call.
type QueryResult struct {
	Content      string   // first choice
	Choices      []string // every choice, Content included
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Querier sends messages to an LLM and receives responses.
type Querier interface {
	Query(ctx context.Context, messages []Message, opts QueryOptions) (QueryResult, error)
}

// OpenAIQuerier implements Querier using the OpenAI-compatible API.
type OpenAIQuerier struct {
	client llms.Model
}

// NewOpenAIQuerier creates a new OpenAI-compatible querier. Authentication
// is left to the transport of httpClient, so the token given to the client
// is only a placeholder when a session is in use.
func NewOpenAIQuerier(token, baseURL, model string, httpClient *http.Client) (*OpenAIQuerier, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	}
	if httpClient != nil {
		opts = append(opts, openai.WithHTTPClient(httpClient))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &OpenAIQuerier{client: client}, nil
}

// Query sends messages to the LLM and returns the response with token usage.
func (q *OpenAIQuerier) Query(ctx context.Context, messages []Message, opts QueryOptions) (QueryResult, error) {
	llmMessages := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		var msgType llms.ChatMessageType
		switch msg.Role {
		case RoleSystem:
			msgType = llms.ChatMessageTypeSystem
		case RoleUser:
			msgType = llms.ChatMessageTypeHuman
		case RoleAssistant:
			msgType = llms.ChatMessageTypeAI
		default:
			continue
		}
		llmMessages = append(llmMessages, llms.TextParts(msgType, msg.Content))
	}

	resp, err := q.client.GenerateContent(ctx, llmMessages, callOptions(opts)...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Choices) == 0 {
		return QueryResult{}, ErrNoChoices
	}

	result := QueryResult{
		Content: resp.Choices[0].Content,
		Choices: make([]string, 0, len(resp.Choices)),
	}
	for _, choice := range resp.Choices {
		result.Choices = append(result.Choices, choice.Content)
	}

	// Extract token usage from GenerationInfo
	if genInfo := resp.Choices[0].GenerationInfo; genInfo != nil {
		result.InputTokens = intFrom(genInfo["PromptTokens"])
		result.OutputTokens = intFrom(genInfo["CompletionTokens"])
		result.TotalTokens = intFrom(genInfo["TotalTokens"])
	}
	if result.TotalTokens == 0 {
		result.TotalTokens = result.InputTokens + result.OutputTokens
	}

	return result, nil
}

func callOptions(opts QueryOptions) []llms.CallOption {
	var out []llms.CallOption
	out = append(out, llms.WithTemperature(opts.Temperature))
	if opts.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.N > 1 {
		out = append(out, llms.WithN(opts.N))
	}
	if opts.PresencePenalty != 0 {
		out = append(out, llms.WithPresencePenalty(opts.PresencePenalty))
	}
	if opts.FrequencyPenalty != 0 {
		out = append(out, llms.WithFrequencyPenalty(opts.FrequencyPenalty))
	}
	return out
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
