package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const fallbackKeyPrefix = "settle:fx:fallback:"

// ErrNoFallbackRate is returned when no backend rate has been stored yet.
var ErrNoFallbackRate = errors.New("fxrate: no fallback rate")

// FallbackStore keeps the pre-fetched backend rate in Redis.
type FallbackStore struct {
	client *redis.Client
	pair   string
	ttl    time.Duration
}

// NewFallbackStore constructs a store for a currency pair such as "USDCNY".
func NewFallbackStore(client *redis.Client, pair string, ttl time.Duration) *FallbackStore {
	return &FallbackStore{client: client, pair: strings.ToUpper(pair), ttl: ttl}
}

// Pair returns the currency pair this store serves.
func (s *FallbackStore) Pair() string {
	return s.pair
}

func (s *FallbackStore) key() string {
	return fallbackKeyPrefix + s.pair
}

// Put stores the backend rate.
func (s *FallbackStore) Put(ctx context.Context, quote Quote) error {
	if s == nil || s.client == nil {
		return nil
	}
	if quote.Rate <= 0 {
		return fmt.Errorf("fxrate: refusing to store non-positive fallback rate %v", quote.Rate)
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(), raw, s.ttl).Err()
}

// FallbackRate returns the stored backend rate. The date is ignored; the
// backend rate is a single pre-fetched default.
func (s *FallbackStore) FallbackRate(ctx context.Context, _ time.Time) (Quote, error) {
	if s == nil || s.client == nil {
		return Quote{}, ErrNoFallbackRate
	}
	raw, err := s.client.Get(ctx, s.key()).Bytes()
	if err == redis.Nil {
		return Quote{}, ErrNoFallbackRate
	}
	if err != nil {
		return Quote{}, fmt.Errorf("fxrate: read fallback: %w", err)
	}
	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return Quote{}, fmt.Errorf("fxrate: decode fallback: %w", err)
	}
	return quote, nil
}

// StaticFallback is a fixed backend rate, used when the rate arrives with the
// order list rather than from the cache.
type StaticFallback Quote

// FallbackRate returns the fixed quote.
func (s StaticFallback) FallbackRate(context.Context, time.Time) (Quote, error) {
	return Quote(s), nil
}
