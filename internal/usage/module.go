package usage

import (
	"context"

	"github.com/j0lvera/relaybot/internal/config"
	"github.com/j0lvera/relaybot/internal/db"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config   *config.Config
	DBClient *db.Client `optional:"true"`
	Logger   zerolog.Logger
}

type Result struct {
	fx.Out

	Tracker *Tracker
}

// New picks Postgres when a database is configured and SQLite otherwise.
func New(lc fx.Lifecycle, p Params) (Result, error) {
	log := p.Logger.With().Str("module", "usage").Logger()

	var store Store
	if p.DBClient != nil {
		pg := NewPGStore(p.DBClient.Pool)
		lc.Append(
			fx.Hook{
				OnStart: func(ctx context.Context) error {
					return pg.Migrate(ctx)
				},
			},
		)
		store = pg
		log.Info().Msg("recording usage in postgres")
	} else {
		sqlite, err := NewSQLiteStore(p.Config.UsageDBPath)
		if err != nil {
			return Result{}, err
		}
		store = sqlite
		log.Info().Str("path", p.Config.UsageDBPath).Msg("recording usage in sqlite")
	}

	lc.Append(
		fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		},
	)

	tracker := NewTracker(store, TrackerConfig{
		TokenPrice:         p.Config.TokenPrice,
		ImagePrice:         p.Config.ImagePrice,
		TranscriptionPrice: p.Config.TranscriptionPrice,
		Budget:             p.Config.UserBudget,
		BudgetPeriod:       p.Config.BudgetPeriod,
	})

	return Result{Tracker: tracker}, nil
}

func Module() fx.Option {
	return fx.Module(
		"usage",
		fx.Provide(New),
	)
}
