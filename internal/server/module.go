package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	tbot "github.com/go-telegram/bot"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/j0lvera/relaybot/internal/usage"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config  *config.Config
	Bot     *tbot.Bot
	Tracker *usage.Tracker
	Logger  zerolog.Logger
}

// Register starts the admin HTTP server when HTTP_ADDR is set.
func Register(lc fx.Lifecycle, p Params) {
	log := p.Logger.With().Str("module", "server").Logger()

	if p.Config.HTTPAddr == "" {
		log.Debug().Msg("HTTP_ADDR not set, admin server disabled")
		return
	}

	var webhook http.Handler
	if p.Config.WebhookURL != "" {
		webhook = p.Bot.WebhookHandler()
	}

	srv := &http.Server{
		Addr:              p.Config.HTTPAddr,
		Handler: NewRouter(RouterConfig{
			Token:          p.Config.AdminAPIToken,
			AllowedOrigins: p.Config.AdminAllowedOrigins,
		}, p.Tracker, webhook, &log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					return err
				}
				log.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("admin server stopped")
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info().Msg("shutting down admin server")
				return srv.Shutdown(ctx)
			},
		},
	)
}

func Module() fx.Option {
	return fx.Module(
		"server",
		fx.Invoke(Register),
	)
}
