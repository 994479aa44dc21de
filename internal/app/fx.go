package app

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
)

// Provider labels reported as the rate source.
const (
	ProviderA = "providerA"
	ProviderB = "providerB"
	ProviderC = "providerC"
)

// NewRateResolver builds the provider chain from configuration. Providers are
// tried in A, B, C order before the fallback source.
func NewRateResolver(cfg *Config, fallback fxrate.FallbackSource, logger *slog.Logger, metrics *fxrate.Metrics) *fxrate.Resolver {
	client := &http.Client{}
	providers := make([]fxrate.Provider, 0, 3)
	for _, p := range []struct{ name, url, path string }{
		{ProviderA, cfg.FXProviderAURL, cfg.FXProviderAPath},
		{ProviderB, cfg.FXProviderBURL, cfg.FXProviderBPath},
		{ProviderC, cfg.FXProviderCURL, cfg.FXProviderCPath},
	} {
		if p.url == "" || p.path == "" {
			continue
		}
		providers = append(providers, &fxrate.HTTPProvider{ProviderName: p.name, URL: p.url, Path: p.path, Client: client})
	}
	opts := []fxrate.Option{
		fxrate.WithTimeout(cfg.FXProviderTimeout),
		fxrate.WithLogger(logger),
		fxrate.WithMetrics(metrics),
	}
	if fallback != nil {
		opts = append(opts, fxrate.WithFallback(fallback))
	}
	return fxrate.NewResolver(providers, opts...)
}
