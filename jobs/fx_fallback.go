package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/settle/internal/jobs"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RateSource reads the backend-maintained rate for a pair.
type RateSource interface {
	LatestRate(ctx context.Context, pair string, asOf time.Time) (fxrate.Quote, error)
}

// FallbackWriter stores the rate the resolver falls back to for one pair.
type FallbackWriter interface {
	Pair() string
	Put(ctx context.Context, quote fxrate.Quote) error
}

// FXFallbackRefreshJob copies the latest backend rate into the fallback cache
// so it is available before any payment dialog opens.
type FXFallbackRefreshJob struct {
	Source  RateSource
	Store   FallbackWriter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewFXFallbackRefreshJob wires dependencies for the refresh handler.
func NewFXFallbackRefreshJob(source RateSource, store FallbackWriter, logger *slog.Logger, metrics *jobmetrics.Metrics) *FXFallbackRefreshJob {
	return &FXFallbackRefreshJob{
		Source:  source,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes fallback refresh tasks.
func (j *FXFallbackRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Store == nil {
		return errors.New("fx fallback refresh: handler not configured")
	}
	var payload FXFallbackPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("fx fallback refresh: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	pair := strings.ToUpper(strings.TrimSpace(payload.Pair))
	if pair == "" {
		return fmt.Errorf("fx fallback refresh: pair required: %w", asynq.SkipRetry)
	}
	if pair != j.Store.Pair() {
		return fmt.Errorf("fx fallback refresh: pair %s not served by store %s: %w", pair, j.Store.Pair(), asynq.SkipRetry)
	}
	asOf := j.clock()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return fmt.Errorf("fx fallback refresh: invalid as_of %q: %w", payload.AsOf, asynq.SkipRetry)
		}
		asOf = parsed
	}

	tracker := j.metrics().Track(TaskFXFallbackRefresh)
	logger := j.logger().With(slog.String("pair", pair), slog.String("as_of", asOf.Format("2006-01-02")))

	quote, err := j.Source.LatestRate(ctx, pair, asOf)
	if errors.Is(err, fxrate.ErrRateNotFound) {
		logger.Warn("no backend rate to cache")
		return tracker.End(nil)
	}
	if err != nil {
		logger.Error("load backend rate", slog.Any("error", err))
		return tracker.End(err)
	}
	if quote.Source == "" {
		quote.Source = "backend"
	}
	if err := j.Store.Put(ctx, quote); err != nil {
		logger.Error("store fallback rate", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().SetFallbackRate(pair, quote.Rate)
	logger.Info("fallback rate refreshed", slog.Float64("rate", quote.Rate), slog.String("source", quote.Source))
	return tracker.End(nil)
}

func (j *FXFallbackRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FXFallbackRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
