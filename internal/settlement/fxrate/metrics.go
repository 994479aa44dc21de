package fxrate

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	sourceFallback = "backend"

	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
	outcomeMissing = "missing"
)

// Metrics counts provider attempts by outcome.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics registers the resolver collectors. A nil registerer uses the
// Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_fx_provider_attempts_total",
		Help: "FX rate provider attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	registerer.MustRegister(attempts)
	return &Metrics{attempts: attempts}
}

func (m *Metrics) observe(provider, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
}

func outcomeFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}
	return outcomeError
}
