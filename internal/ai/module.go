package ai

import (
	"context"
	"net/http"

	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

// sessionToken stands in for the API key when the transport authenticates.
const sessionToken = "session"

// Params for creating the AI clients
type Params struct {
	fx.In

	Config *config.Config
	Logger zerolog.Logger
}

// Result of creating the AI clients
type Result struct {
	fx.Out

	Querier     agent.Querier
	Images      *ImageGenerator
	Transcriber *Transcriber
}

// New creates the chat and image clients based on configuration
func New(lc fx.Lifecycle, p Params) (Result, error) {
	cfg := p.Config
	log := p.Logger.With().Str("module", "ai").Logger()

	var (
		source  oauth2.TokenSource
		session *Session
		token   = cfg.APIKey
	)
	switch {
	case cfg.APIKey != "":
		source = StaticToken(cfg.APIKey)
	case cfg.UseSession():
		session = NewSession(SessionConfig{
			Email:    cfg.Email,
			Password: cfg.Password,
			AuthURL:  cfg.AuthURL,
			ClientID: cfg.ClientID,
		})
		source = session
		token = sessionToken
	}

	var httpClient *http.Client
	if source != nil {
		httpClient = NewHTTPClient(source, cfg.RequestTimeout)
	}

	var base agent.Querier
	switch cfg.Provider {
	case config.ProviderOllama:
		q, err := agent.NewOllamaQuerier(cfg.OllamaModel)
		if err != nil {
			return Result{}, err
		}
		base = q
	default:
		q, err := agent.NewOpenAIQuerier(token, cfg.BaseURL, cfg.Model, httpClient)
		if err != nil {
			return Result{}, err
		}
		base = q
	}

	// The session only backs chat when OpenAI serves it. With Ollama it is
	// there for images alone and a failed login must not stop the bot.
	chatOverSession := session != nil && cfg.Provider == config.ProviderOpenAI

	var refresher Refresher
	if chatOverSession {
		refresher = session
	}
	if session != nil {
		lc.Append(
			fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info().Str("email", cfg.Email).Msg("logging in to OpenAI")
					err := session.Login(ctx)
					if err != nil && !chatOverSession {
						log.Warn().Err(err).Msg("unable to log in, image generation will fail")
						return nil
					}
					return err
				},
			},
		)
	}

	var images *ImageGenerator
	if cfg.EnableImageGeneration && source != nil {
		images = NewImageGenerator(token, cfg.BaseURL, cfg.ImageSize, httpClient)
	}

	var transcriber *Transcriber
	if cfg.EnableTranscription && source != nil {
		transcriber = NewTranscriber(token, cfg.BaseURL, httpClient)
	}

	log.Info().
		Str("provider", cfg.Provider).
		Bool("session", session != nil).
		Bool("images", images != nil).
		Bool("transcription", transcriber != nil).
		Msg("ai backend configured")

	return Result{
		Querier:     NewRetryQuerier(base, refresher, &log),
		Images:      images,
		Transcriber: transcriber,
	}, nil
}

// Module provides the AI clients
func Module() fx.Option {
	return fx.Module(
		"ai",
		fx.Provide(
			New,
		),
	)
}
