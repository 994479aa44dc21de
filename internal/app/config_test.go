package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/settle/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3*time.Second, cfg.FXProviderTimeout)
	require.Equal(t, "USDCNY", cfg.FXPair())
	require.False(t, cfg.IsProduction())
	require.True(t, InTestMode())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BATCH_CURRENCY", "eur")
	t.Setenv("FX_TARGET_CURRENCY", "jpy")
	t.Setenv("FX_PROVIDER_TIMEOUT", "750ms")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "EURJPY", cfg.FXPair())
	require.Equal(t, 750*time.Millisecond, cfg.FXProviderTimeout)
	require.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"zero timeout":     {"FX_PROVIDER_TIMEOUT", "0s"},
		"bad currency":     {"BATCH_CURRENCY", "DOLLAR"},
		"bad target":       {"FX_TARGET_CURRENCY", "C"},
		"malformed number": {"APP_RATE_LIMIT_PER_MIN", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewRateResolverSkipsUnconfiguredProviders(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.FXProviderAURL = ""
	cfg.FXProviderBURL = ""
	cfg.FXProviderCURL = ""

	resolver := NewRateResolver(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res := resolver.Resolve(ctx, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	require.True(t, res.Failed)
}
