package usage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/j0lvera/relaybot/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestNew_FallsBackToSQLite(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := &config.Config{
		UsageDBPath:  filepath.Join(t.TempDir(), "usage.db"),
		TokenPrice:   0.002,
		BudgetPeriod: config.BudgetMonthly,
	}

	res, err := New(lc, Params{Config: cfg, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotNil(t, res.Tracker)

	lc.RequireStart()
	require.NoError(t, res.Tracker.AddChatTokens(context.Background(), 1, "ann", 500))
	stats, err := res.Tracker.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 500, stats.AllTime.Tokens)
	lc.RequireStop()
}
