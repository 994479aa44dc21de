package settlement

import (
	"strings"
	"time"
)

// Blocker names a reason the batch cannot be submitted yet.
type Blocker string

const (
	// BlockerNoOrders means the batch has no selected orders.
	BlockerNoOrders Blocker = "no_orders"
	// BlockerNoPaymentDate means no payment date was chosen.
	BlockerNoPaymentDate Blocker = "no_payment_date"
	// BlockerRateFetching means a rate resolution is still in flight.
	BlockerRateFetching Blocker = "rate_fetching"
	// BlockerRateUnresolved means the selection needs a rate and none is known.
	BlockerRateUnresolved Blocker = "rate_unresolved"
	// BlockerExtraFeeNote means an extra fee was entered without a note.
	BlockerExtraFeeNote Blocker = "extra_fee_note_required"
	// BlockerInvalidConfig means some order config has an unknown mode or a negative amount.
	BlockerInvalidConfig Blocker = "invalid_config"
	// BlockerInvalidSelection means the rate selection is not a known strategy.
	BlockerInvalidSelection Blocker = "invalid_rate_selection"
)

// GateState is the batch state the submit gate decides on.
type GateState struct {
	OrderCount    int
	PaymentDate   time.Time
	RateSelection RateSelection
	// Rate is the auto-resolved or manually entered settlement rate.
	Rate         float64
	RateFetching bool
	ExtraFee     *ExtraFee
	Configs      map[string]AllocationConfig
}

// Decision is the gate outcome with every blocker that applied.
type Decision struct {
	Allowed  bool      `json:"allowed"`
	Blockers []Blocker `json:"blockers,omitempty"`
}

// GateStateFor derives the gate state from a batch snapshot.
func GateStateFor(b Batch, rateFetching bool) GateState {
	return GateState{
		OrderCount:    len(b.Orders),
		PaymentDate:   b.PaymentDate,
		RateSelection: b.RateSelection,
		Rate:          b.ResolvedRate,
		RateFetching:  rateFetching,
		ExtraFee:      b.ExtraFee,
		Configs:       b.Configs,
	}
}

// Evaluate checks every submission rule. Business limits such as a cap on
// the cash total are enforced by the server, not here.
func Evaluate(s GateState) Decision {
	var blockers []Blocker
	if s.OrderCount <= 0 {
		blockers = append(blockers, BlockerNoOrders)
	}
	if s.PaymentDate.IsZero() {
		blockers = append(blockers, BlockerNoPaymentDate)
	}
	selection := s.RateSelection
	if selection == "" {
		selection = RateOriginal
	}
	if !selection.Valid() {
		blockers = append(blockers, BlockerInvalidSelection)
	}
	if selection.RequiresRate() {
		if s.RateFetching {
			blockers = append(blockers, BlockerRateFetching)
		} else if s.Rate <= 0 {
			blockers = append(blockers, BlockerRateUnresolved)
		}
	}
	if s.ExtraFee.Active() && strings.TrimSpace(s.ExtraFee.Note) == "" {
		blockers = append(blockers, BlockerExtraFeeNote)
	}
	for _, cfg := range s.Configs {
		if !validConfig(cfg) {
			blockers = append(blockers, BlockerInvalidConfig)
			break
		}
	}
	return Decision{Allowed: len(blockers) == 0, Blockers: blockers}
}

// CanSubmit reports whether the batch may be dispatched.
func CanSubmit(s GateState) bool {
	return Evaluate(s).Allowed
}

func validConfig(cfg AllocationConfig) bool {
	if cfg.Mode != "" && !cfg.Mode.Valid() {
		return false
	}
	if cfg.Mode == ModeCustom && cfg.CustomAmount < 0 {
		return false
	}
	return !cfg.UsePrepay || cfg.PrepayAmount >= 0
}
