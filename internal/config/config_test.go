package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/stocky")
	t.Setenv("REWARD_TIMEZONE", "Asia/Kolkata")
	t.Setenv("PRICE_LOOKUP_TIMEOUT", "500ms")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", cfg.Rewards.Location.String())
	require.Equal(t, 500*time.Millisecond, cfg.Pricing.LookupTimeout)
	require.Equal(t, 10, cfg.DB.MaxOpenConns)
	require.Equal(t, time.Hour, cfg.Pricing.StaleAfter)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRejectsUnknownZone(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/stocky")
	t.Setenv("REWARD_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.ErrorContains(t, err, "REWARD_TIMEZONE")
}
