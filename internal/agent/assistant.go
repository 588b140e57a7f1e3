package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// AssistantConfig holds configuration for the assistant.
type AssistantConfig struct {
	Model              string
	SystemPrompt       string
	SummarisePrompt    string
	MaxHistorySize     int           // messages kept before summarising (0 = unlimited)
	MaxConversationAge time.Duration // idle time before a chat starts over (0 = never)
	ShowUsage          bool
	Options            QueryOptions
}

// Answer is the text to relay back to a chat.
type Answer struct {
	Text        string
	TotalTokens int
}

// ConversationStats describes the current state of a chat history.
type ConversationStats struct {
	Messages int
	Tokens   int
}

// Assistant keeps one conversation per chat and asks the model to continue it.
type Assistant struct {
	config  AssistantConfig
	store   *Store
	querier Querier
	counter TokenCounter
	logger  *zerolog.Logger

	// One permit per chat; held for a whole exchange.
	locks   map[int64]*semaphore.Weighted
	locksMu sync.Mutex
}

// NewAssistant creates a new assistant.
func NewAssistant(
	config AssistantConfig,
	store *Store,
	querier Querier,
	counter TokenCounter,
	logger *zerolog.Logger,
) *Assistant {
	if counter == nil {
		counter = approxCounter{}
	}
	return &Assistant{
		config:  config,
		store:   store,
		querier: querier,
		counter: counter,
		logger:  logger,
		locks:   make(map[int64]*semaphore.Weighted),
	}
}

// lock waits until no other exchange runs on the chat. The returned func
// releases it.
func (a *Assistant) lock(ctx context.Context, chatID int64) (func(), error) {
	a.locksMu.Lock()
	sem, ok := a.locks[chatID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		a.locks[chatID] = sem
	}
	a.locksMu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Reply appends prompt to the chat history, queries the model and records
// the answer. On failure the history is left as it was before the call.
// Replies within one chat run one at a time.
func (a *Assistant) Reply(ctx context.Context, chatID int64, prompt string) (Answer, error) {
	unlock, err := a.lock(ctx, chatID)
	if err != nil {
		return Answer{}, err
	}
	defer unlock()

	if !a.store.Exists(chatID) || a.store.Expired(chatID, a.config.MaxConversationAge) {
		a.store.Reset(chatID, a.config.SystemPrompt)
	}

	a.store.AddMessage(chatID, RoleUser, prompt)
	history := a.store.History(chatID)

	// Summarise the history if it's too long to keep token usage in check
	tokens := a.counter.Count(history)
	exceededTokens := tokens+a.config.Options.MaxTokens > contextWindow(a.config.Model)
	exceededSize := a.config.MaxHistorySize > 0 && len(history) > a.config.MaxHistorySize
	if exceededTokens || exceededSize {
		history = a.compact(ctx, chatID, history, prompt)
	}

	result, err := a.querier.Query(ctx, history, a.config.Options)
	if err != nil {
		a.store.PopLast(chatID, RoleUser)
		return Answer{}, err
	}

	choices := result.Choices
	if len(choices) == 0 {
		choices = []string{result.Content}
	}

	var text string
	if len(choices) > 1 {
		var b strings.Builder
		for i, choice := range choices {
			choice = strings.TrimSpace(choice)
			if i == 0 {
				a.store.AddMessage(chatID, RoleAssistant, choice)
			}
			fmt.Fprintf(&b, "%d⃣\n%s\n\n", i+1, choice)
		}
		text = strings.TrimSpace(b.String())
	} else {
		text = strings.TrimSpace(choices[0])
		if text == "" {
			a.store.PopLast(chatID, RoleUser)
			return Answer{}, ErrNoChoices
		}
		a.store.AddMessage(chatID, RoleAssistant, text)
	}

	if a.config.ShowUsage {
		text += fmt.Sprintf(
			"\n\n---\n💰 Tokens used: %d (%d prompt, %d completion)",
			result.TotalTokens, result.InputTokens, result.OutputTokens,
		)
	}

	return Answer{Text: text, TotalTokens: result.TotalTokens}, nil
}

// Reset starts the chat over with only the system prompt. A reply in
// flight on the chat finishes first.
func (a *Assistant) Reset(chatID int64) {
	unlock, err := a.lock(context.Background(), chatID)
	if err != nil {
		return
	}
	defer unlock()

	a.store.Reset(chatID, a.config.SystemPrompt)
}

// Stats returns the size of the chat history.
func (a *Assistant) Stats(chatID int64) ConversationStats {
	history := a.store.History(chatID)
	if len(history) == 0 {
		return ConversationStats{}
	}
	return ConversationStats{
		Messages: len(history),
		Tokens:   a.counter.Count(history),
	}
}

// Prune drops idle conversations.
func (a *Assistant) Prune() int {
	return a.store.Prune(a.config.MaxConversationAge)
}

// compact replaces the history with a summary of everything but the
// latest prompt. If the model cannot summarise, old messages are dropped.
func (a *Assistant) compact(ctx context.Context, chatID int64, history []Message, prompt string) []Message {
	a.logger.Info().
		Int64("chat_id", chatID).
		Int("messages", len(history)).
		Msg("chat history too long, summarising")

	summary, err := a.summarise(ctx, history[:len(history)-1])
	if err == nil {
		compacted := []Message{
			{Role: RoleSystem, Content: a.config.SystemPrompt},
			{Role: RoleAssistant, Content: summary},
			{Role: RoleUser, Content: prompt},
		}
		a.store.Replace(chatID, compacted)
		return compacted
	}

	a.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("unable to summarise chat history, dropping old messages")

	var kept []Message
	rest := history
	if len(history) > 0 && history[0].Role == RoleSystem {
		kept = append(kept, history[0])
		rest = history[1:]
	}
	if limit := a.config.MaxHistorySize; limit > 0 && len(rest) > limit {
		rest = rest[len(rest)-limit:]
	}
	kept = append(kept, rest...)

	a.store.Replace(chatID, kept)
	return kept
}

// summarise asks the model to condense a conversation.
func (a *Assistant) summarise(ctx context.Context, history []Message) (string, error) {
	var transcript strings.Builder
	for _, msg := range history {
		if msg.Role == RoleSystem {
			continue
		}
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	prompt := []Message{
		{Role: RoleSystem, Content: a.config.SummarisePrompt},
		{Role: RoleUser, Content: transcript.String()},
	}

	result, err := a.querier.Query(ctx, prompt, QueryOptions{Temperature: 0.4})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	summary := strings.TrimSpace(result.Content)
	if summary == "" {
		return "", ErrNoChoices
	}

	a.logger.Debug().
		Int("original_messages", len(history)).
		Int("summary_length", len(summary)).
		Msg("chat history summarised")

	return summary, nil
}
