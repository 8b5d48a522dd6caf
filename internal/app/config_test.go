package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.CacheTTL)
	require.Equal(t, 17.5, cfg.ExchangeRate().Float())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEFAULT_EXCHANGE_RATE", "18.25")
	t.Setenv("WARMUP_CRON", "*/5 * * * *")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 18.25, cfg.ExchangeRate().Float())
	require.Equal(t, "*/5 * * * *", cfg.WarmupCron)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"zero rate":    {"DEFAULT_EXCHANGE_RATE": "0"},
		"negative ttl": {"CACHE_TTL": "-1s"},
		"bad cron":     {"WARMUP_CRON": "every now and then"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestNilConfigFallsBackToDefaultRate(t *testing.T) {
	var cfg *Config
	require.Equal(t, 17.5, cfg.ExchangeRate().Float())
	require.False(t, cfg.IsProduction())
}

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("circuit", "CIRC-1"))
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
	require.Contains(t, out, `"circuit":"CIRC-1"`)
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
