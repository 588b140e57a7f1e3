package agent

import (
	"context"

	"github.com/j0lvera/relaybot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// janitorSchedule is how often idle conversations are dropped.
const janitorSchedule = "@every 1m"

// Params for creating an Assistant
type Params struct {
	fx.In

	Config  *config.Config
	Querier Querier
	Logger  zerolog.Logger
}

// Result of creating an Assistant
type Result struct {
	fx.Out

	Store     *Store
	Assistant *Assistant
}

// New creates the conversation store and the assistant
func New(lc fx.Lifecycle, p Params) (Result, error) {
	log := p.Logger.With().Str("module", "agent").Logger()

	model := p.Config.Model
	if p.Config.Provider == config.ProviderOllama {
		model = p.Config.OllamaModel
	}

	counter, err := NewTokenCounter(model)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("tiktoken encoding unavailable, estimating tokens")
	}

	store := NewStore()
	assistant := NewAssistant(
		AssistantConfig{
			Model:              model,
			SystemPrompt:       p.Config.Prompts.Assistant,
			SummarisePrompt:    p.Config.Prompts.Summarise,
			MaxHistorySize:     p.Config.MaxHistorySize,
			MaxConversationAge: p.Config.MaxConversationAge,
			ShowUsage:          p.Config.ShowUsage,
			Options: QueryOptions{
				Temperature:      p.Config.Temperature,
				MaxTokens:        p.Config.MaxTokens,
				N:                p.Config.NChoices,
				PresencePenalty:  p.Config.PresencePenalty,
				FrequencyPenalty: p.Config.FrequencyPenalty,
			},
		},
		store,
		p.Querier,
		counter,
		&log,
	)

	janitor := cron.New()
	if _, err := janitor.AddFunc(janitorSchedule, func() {
		if n := assistant.Prune(); n > 0 {
			log.Debug().Int("conversations", n).Msg("pruned idle conversations")
		}
	}); err != nil {
		return Result{}, err
	}

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				janitor.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				select {
				case <-janitor.Stop().Done():
				case <-ctx.Done():
				}
				return nil
			},
		},
	)

	return Result{
		Store:     store,
		Assistant: assistant,
	}, nil
}

// Module provides the conversation store and the assistant
func Module() fx.Option {
	return fx.Module(
		"agent",
		fx.Provide(
			New,
		),
	)
}
