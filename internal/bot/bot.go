package bot

import (
	"context"
	"time"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/j0lvera/relaybot/internal/ai"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/j0lvera/relaybot/internal/usage"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config      *config.Config
	Assistant   *agent.Assistant
	Images      *ai.ImageGenerator `optional:"true"`
	Transcriber *ai.Transcriber    `optional:"true"`
	Tracker     *usage.Tracker
	Logger      zerolog.Logger
}

type Result struct {
	fx.Out

	Bot     *tbot.Bot
	Handler *Handler
}

func New(lc fx.Lifecycle, p Params) (Result, error) {
	log := p.Logger.With().Str("module", "bot").Logger()

	// Nil clients must stay nil interfaces.
	var images ImageGenerator
	if p.Images != nil {
		images = p.Images
	}
	var transcriber Transcriber
	if p.Transcriber != nil {
		transcriber = p.Transcriber
	}
	handler := NewHandler(p.Config, p.Assistant, images, transcriber, p.Tracker, &log)

	opts := []tbot.Option{
		tbot.WithDefaultHandler(handler.Handle),
		tbot.WithMiddlewares(logUpdates(&log)),
		tbot.WithErrorsHandler(func(err error) {
			log.Error().Err(err).Msg("telegram transport error")
		}),
	}
	if p.Config.WebhookSecret != "" {
		opts = append(opts, tbot.WithWebhookSecretToken(p.Config.WebhookSecret))
	}

	tg, err := tbot.New(p.Config.Token, opts...)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				if me, err := tg.GetMe(ctx); err != nil {
					log.Warn().Err(err).Msg("unable to fetch bot username")
				} else {
					handler.SetUsername(me.Username)
					log.Info().Str("username", me.Username).Msg("running as bot")
				}

				if p.Config.WebhookURL != "" {
					if _, err := tg.SetWebhook(ctx, &tbot.SetWebhookParams{
						URL:         p.Config.WebhookURL,
						SecretToken: p.Config.WebhookSecret,
					}); err != nil {
						cancel()
						return err
					}
					log.Info().Str("url", p.Config.WebhookURL).Msg("starting telegram bot with webhook...")
					go tg.StartWebhook(runCtx)
					return nil
				}

				if _, err := tg.DeleteWebhook(ctx, &tbot.DeleteWebhookParams{}); err != nil {
					log.Warn().Err(err).Msg("unable to delete webhook before polling")
				}
				log.Info().Msg("starting telegram bot...")
				go tg.Start(runCtx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info().Msg("stopping telegram bot...")
				cancel()
				return nil
			},
		},
	)

	return Result{
		Bot:     tg,
		Handler: handler,
	}, nil
}

// logUpdates logs every incoming update and how long it took to handle.
func logUpdates(log *zerolog.Logger) tbot.Middleware {
	return func(next tbot.HandlerFunc) tbot.HandlerFunc {
		return func(ctx context.Context, tg *tbot.Bot, update *models.Update) {
			start := time.Now()
			next(ctx, tg, update)

			ev := log.Debug().Int64("update_id", update.ID).Dur("took", time.Since(start))
			if update.Message != nil {
				ev = ev.Int64("chat_id", update.Message.Chat.ID)
				if update.Message.From != nil {
					ev = ev.Int64("user_id", update.Message.From.ID)
				}
			}
			ev.Msg("update handled")
		}
	}
}

func Module() fx.Option {
	return fx.Module(
		"bot",
		fx.Provide(
			New,
		),
		fx.Invoke(
			func(bot *tbot.Bot) {},
		),
	)
}
