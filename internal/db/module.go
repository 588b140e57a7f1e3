package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/j0lvera/relaybot/internal/config"
)

type Params struct {
	fx.In

	Config *config.Config
	Logger zerolog.Logger
}

type Result struct {
	fx.Out

	Client *Client
}

// Client wraps the Postgres pool. A nil *Client means no database is
// configured.
type Client struct {
	Pool *pgxpool.Pool
}

func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{
		Pool: pool,
	}
}

func New(lc fx.Lifecycle, p Params) (Result, error) {
	if p.Config.DatabaseURL == "" {
		p.Logger.Debug().Msg("DATABASE_URL not set, skipping postgres")
		return Result{}, nil
	}

	pool, err := pgxpool.New(context.Background(), p.Config.DatabaseURL)
	if err != nil {
		return Result{}, fmt.Errorf("unable to create connection pool: %w", err)
	}

	client := NewClient(pool)

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := pool.Ping(ctx); err != nil {
					return fmt.Errorf("unable to reach database: %w", err)
				}
				p.Logger.Info().Msg("database connection established")
				return nil
			},
			OnStop: func(ctx context.Context) error {
				p.Logger.Info().Msg("closing database connection")
				pool.Close()
				return nil
			},
		},
	)

	return Result{Client: client}, nil
}

func Module() fx.Option {
	return fx.Module(
		"db",
		fx.Provide(New),
	)
}
