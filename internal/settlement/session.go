package settlement

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownOrder is returned when a config targets an order not in the session.
	ErrUnknownOrder = errors.New("settlement: order not in session")
	// ErrInvalidRate is returned for a non-positive manual rate.
	ErrInvalidRate = errors.New("settlement: rate must be positive")
)

// RateState describes the settlement rate currently held by a session.
type RateState struct {
	Rate       float64 `json:"rate,omitempty"`
	Source     string  `json:"source,omitempty"`
	Fetching   bool    `json:"fetching"`
	Failed     bool    `json:"failed"`
	Manual     bool    `json:"manual"`
	Generation uint64  `json:"generation"`
}

// Session holds the mutable inputs of one payment dialog. Configs are reset to
// defaults when the session opens and the session is discarded after submit.
//
// Rate resolutions are tagged with a generation; a result is only applied when
// its generation is still the latest, so a slow provider answer for an old
// date can never overwrite a newer one.
type Session struct {
	ID uuid.UUID

	mu    sync.Mutex
	batch Batch
	rate  RateState
}

// NewSession opens a session for the selected orders.
func NewSession(orders []Order, balances map[string]float64, currency string) *Session {
	configs := make(map[string]AllocationConfig, len(orders))
	for _, order := range orders {
		configs[order.OrderID] = DefaultConfig()
	}
	copied := make(map[string]float64, len(balances))
	for supplier, available := range balances {
		copied[supplier] = available
	}
	return &Session{
		ID: uuid.New(),
		batch: Batch{
			Orders:         append([]Order(nil), orders...),
			Configs:        configs,
			PrepayBalances: copied,
			RateSelection:  RateOriginal,
			Currency:       currency,
		},
	}
}

// SetConfig replaces one order's allocation config.
func (s *Session) SetConfig(orderID string, cfg AllocationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batch.Configs[orderID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOriginal
	}
	s.batch.Configs[orderID] = cfg
	return nil
}

// SetExtraFee sets or clears the batch extra fee.
func (s *Session) SetExtraFee(fee *ExtraFee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fee == nil {
		s.batch.ExtraFee = nil
		return
	}
	copied := *fee
	s.batch.ExtraFee = &copied
}

// SetActualLump sets or clears the lump sum used by the actual-rate selection.
func (s *Session) SetActualLump(lump *ActualLump) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lump == nil {
		s.batch.ActualLump = nil
		return
	}
	copied := *lump
	s.batch.ActualLump = &copied
}

// SetPaymentDate changes the payment date. When the date changed and the
// selection needs a rate, a new resolution generation is started and returned.
func (s *Session) SetPaymentDate(date time.Time) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date = truncateDay(date)
	if date.Equal(s.batch.PaymentDate) {
		return s.rate.Generation, false
	}
	s.batch.PaymentDate = date
	return s.beginLocked()
}

// SetRateSelection changes the rate strategy, starting a new resolution
// generation when the new selection needs a rate.
func (s *Session) SetRateSelection(sel RateSelection) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel == s.batch.RateSelection {
		return s.rate.Generation, false
	}
	s.batch.RateSelection = sel
	return s.beginLocked()
}

func (s *Session) beginLocked() (uint64, bool) {
	s.rate.Generation++
	s.rate.Rate = 0
	s.rate.Source = ""
	s.rate.Failed = false
	s.rate.Manual = false
	s.batch.ResolvedRate = 0
	if !s.batch.RateSelection.RequiresRate() || s.batch.PaymentDate.IsZero() {
		s.rate.Fetching = false
		return s.rate.Generation, false
	}
	s.rate.Fetching = true
	return s.rate.Generation, true
}

// CompleteResolution applies a resolution result if gen is still current and
// reports whether it was applied. Stale results are dropped silently.
func (s *Session) CompleteResolution(gen uint64, rate float64, source string, failed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.rate.Generation || !s.rate.Fetching {
		return false
	}
	s.rate.Fetching = false
	if failed || rate <= 0 {
		s.rate.Failed = true
		return true
	}
	s.rate.Rate = rate
	s.rate.Source = source
	s.batch.ResolvedRate = rate
	return true
}

// SetManualRate stores a user-entered rate. It does not start a resolution;
// any resolution still in flight is abandoned.
func (s *Session) SetManualRate(rate float64) error {
	if rate <= 0 {
		return ErrInvalidRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rate.Fetching {
		s.rate.Generation++
		s.rate.Fetching = false
	}
	s.rate.Rate = Round4(rate)
	s.rate.Source = "manual"
	s.rate.Manual = true
	s.batch.ResolvedRate = s.rate.Rate
	return nil
}

// Snapshot returns a copy of the current inputs and rate state.
func (s *Session) Snapshot() (Batch, RateState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.batch
	b.Orders = append([]Order(nil), s.batch.Orders...)
	b.Configs = make(map[string]AllocationConfig, len(s.batch.Configs))
	for id, cfg := range s.batch.Configs {
		b.Configs[id] = cfg
	}
	if s.batch.ExtraFee != nil {
		fee := *s.batch.ExtraFee
		b.ExtraFee = &fee
	}
	if s.batch.ActualLump != nil {
		lump := *s.batch.ActualLump
		b.ActualLump = &lump
	}
	return b, s.rate
}

// Preview recomputes the summary, payload and gate decision from a snapshot.
func (s *Session) Preview() (Result, Decision) {
	b, rate := s.Snapshot()
	return Aggregate(b), Evaluate(GateStateFor(b, rate.Fetching))
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
