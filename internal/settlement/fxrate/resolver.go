package fxrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/settle/internal/settlement"
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 3 * time.Second

// Quote is a rate with the label of where it came from.
type Quote struct {
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
}

// Resolution is the outcome of one resolve request. Failed means every
// provider and the fallback were exhausted and a manual rate is required.
type Resolution struct {
	Rate   float64 `json:"rate,omitempty"`
	Source string  `json:"source,omitempty"`
	Failed bool    `json:"failed"`
}

// FallbackSource supplies the backend-reported default rate.
type FallbackSource interface {
	FallbackRate(ctx context.Context, date time.Time) (Quote, error)
}

// Resolver tries the providers in order, then the fallback rate.
type Resolver struct {
	providers []Provider
	fallback  FallbackSource
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithTimeout overrides the per-provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFallback sets the backend fallback source.
func WithFallback(src FallbackSource) Option {
	return func(r *Resolver) { r.fallback = src }
}

// WithLogger sets the logger used for provider failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics records provider outcomes.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver constructs a resolver over the ordered providers.
func NewResolver(providers []Provider, opts ...Option) *Resolver {
	r := &Resolver{
		providers: providers,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first rate available for date. Each provider is tried
// once; errors, non-2xx answers and timeouts all move on to the next one.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) Resolution {
	for _, p := range r.providers {
		if ctx.Err() != nil {
			break
		}
		rate, err := r.try(ctx, p, date)
		if err != nil {
			r.metrics.observe(p.Name(), outcomeFor(err))
			r.logger.Warn("fx provider failed",
				slog.String("provider", p.Name()),
				slog.String("date", date.Format(settlement.DateLayout)),
				slog.Any("error", err))
			continue
		}
		r.metrics.observe(p.Name(), outcomeOK)
		return Resolution{Rate: settlement.Round4(rate), Source: p.Name()}
	}

	if r.fallback != nil {
		quote, err := r.fallback.FallbackRate(ctx, date)
		switch {
		case err != nil:
			r.metrics.observe(sourceFallback, outcomeError)
			r.logger.Warn("fx fallback rate unavailable", slog.Any("error", err))
		case quote.Rate > 0:
			r.metrics.observe(sourceFallback, outcomeOK)
			source := quote.Source
			if source == "" {
				source = sourceFallback
			}
			return Resolution{Rate: quote.Rate, Source: source}
		default:
			r.metrics.observe(sourceFallback, outcomeMissing)
		}
	}

	r.logger.Info("fx rate resolution exhausted, manual entry required",
		slog.String("date", date.Format(settlement.DateLayout)))
	return Resolution{Failed: true}
}

func (r *Resolver) try(ctx context.Context, p Provider, date time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return p.Rate(ctx, date)
}
