package db

import (
	"testing"

	"github.com/j0lvera/relaybot/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestNew_WithoutDatabaseURL(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	res, err := New(lc, Params{Config: &config.Config{}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Nil(t, res.Client)

	lc.RequireStart().RequireStop()
}

func TestNew_InvalidDatabaseURL(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	_, err := New(lc, Params{Config: &config.Config{DatabaseURL: "postgres://%zz"}, Logger: zerolog.Nop()})
	assert.Error(t, err)
}
