package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.ScanInterval())
	assert.Equal(t, []string{"soccer_epl"}, cfg.Scanner.Sports)
	assert.Equal(t, 100.0, cfg.Scanner.TotalStake)
	assert.Equal(t, domain.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, "snapshot", cfg.Source.Kind)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.QuoteTTL())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_PolicyPartialOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
policy:
  min_value: 0
  max_odds: 5
  horizon: 12h
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Policy.MinValue, "cero es un umbral válido")
	assert.Equal(t, 5.0, cfg.Policy.MaxOdds)
	assert.Equal(t, 12*time.Hour, cfg.Policy.Horizon)
	assert.Equal(t, domain.DefaultPolicy().MinConfidence, cfg.Policy.MinConfidence)
	assert.Equal(t, domain.DefaultPolicy().MarketTypes, cfg.Policy.MarketTypes)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"odds band":     "policy: {min_odds: 5, max_odds: 2}",
		"confidence":    "policy: {min_confidence: 1.5}",
		"source kind":   "source: {kind: ftp}",
		"feed no url":   "source: {kind: feed}",
		"driver":        "storage: {driver: mysql}",
		"postgres dsn":  "storage: {driver: postgres}",
		"profit margin": "scanner: {min_profit_margin: 2}",
		"NaN margin":    "scanner: {min_profit_margin: .nan}",
		"NaN stake":     "scanner: {total_stake: .nan}",
		"NaN min value": "policy: {min_value: .nan}",
		"Inf max odds":  "policy: {max_odds: .inf}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}

	_, err := Parse([]byte("scanner: ["))
	assert.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VALUEBOT_POSTGRES_DSN", "postgres://localhost/valuebot")
	t.Setenv("VALUEBOT_FEED_URL", "http://feed.local")
	t.Setenv("VALUEBOT_FEED_API_KEY", "secret")
	t.Setenv("VALUEBOT_HTTP_ADDR", ":9090")

	cfg, err := Parse([]byte("log: {level: warn}"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/valuebot", cfg.Storage.PostgresDSN)
	assert.Equal(t, "feed", cfg.Source.Kind)
	assert.Equal(t, "secret", cfg.Source.APIKey)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner: {interval_seconds: 60, sports: [tennis_atp]}"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.ScanInterval())
	assert.Equal(t, []string{"tennis_atp"}, cfg.Scanner.Sports)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.Scanner.ArbitrageHorizon)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
}
