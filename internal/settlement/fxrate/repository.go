package fxrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRateNotFound indicates the backend has no rate for the pair on or before the date.
var ErrRateNotFound = errors.New("fxrate: backend rate not found")

// Repository reads backend-maintained settlement rates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const latestRateQuery = `SELECT rate, source
FROM settlement_fx_rates
WHERE pair = $1 AND rate_date <= $2
ORDER BY rate_date DESC
LIMIT 1`

// LatestRate returns the most recent backend rate for pair as of the given date.
func (r *Repository) LatestRate(ctx context.Context, pair string, asOf time.Time) (Quote, error) {
	var quote Quote
	err := r.pool.QueryRow(ctx, latestRateQuery, pair, asOf).Scan(&quote.Rate, &quote.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrRateNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("fxrate: latest rate: %w", err)
	}
	return quote, nil
}
