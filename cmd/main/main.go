package main

import (
	"github.com/ipfans/fxlogger"
	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/j0lvera/relaybot/internal/ai"
	"github.com/j0lvera/relaybot/internal/bot"
	"github.com/j0lvera/relaybot/internal/config"
	"github.com/j0lvera/relaybot/internal/db"
	"github.com/j0lvera/relaybot/internal/log"
	"github.com/j0lvera/relaybot/internal/server"
	"github.com/j0lvera/relaybot/internal/usage"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	_ = godotenv.Load()

	fx.New(
		fx.WithLogger(fxlogger.WithZerolog(log.NewLogger())),
		config.Module(),
		log.Module(),
		db.Module(),
		usage.Module(),
		ai.Module(),
		agent.Module(),
		bot.Module(),
		server.Module(),
	).Run()
}
