package settlement

import "math"

// Allocate computes one order's cash due, prepay deduction and pending balance.
//
// extraShare is the order's even share of the batch extra fee; it is carried on
// the result but never changes what the order owes. actualCashShare, when
// positive, replaces the cash figure used for display and for the pending
// balance, while CashDue stays mode-driven because that is what gets submitted.
func Allocate(order Order, cfg AllocationConfig, extraShare, actualCashShare float64) OrderAllocation {
	outstanding := order.OutstandingBalance()
	remaining := payable(order, cfg)

	var prepayUsed float64
	if cfg.UsePrepay {
		prepayUsed = nonNegative(math.Min(cfg.PrepayAmount, remaining))
	}

	cashDue := Round5(nonNegative(remaining - prepayUsed))

	displayCash := cashDue
	if actualCashShare > 0 {
		displayCash = actualCashShare
	}

	var pendingAfter float64
	if !cfg.MarkFullySettled {
		pendingAfter = nonNegative(Round5(outstanding - prepayUsed - displayCash))
	}

	return OrderAllocation{
		OrderID:      order.OrderID,
		Remaining:    remaining,
		PrepayUsed:   prepayUsed,
		CashDue:      cashDue,
		DisplayCash:  displayCash,
		ExtraShare:   extraShare,
		PendingAfter: pendingAfter,
	}
}

// ClampPrepay caps each order's prepay draw at what the order can absorb and
// then at what is left of its supplier's balance, charging orders in the given
// order. Suppliers with no entry in balances are only capped per order.
func ClampPrepay(orders []Order, configs map[string]AllocationConfig, balances map[string]float64) map[string]AllocationConfig {
	out := make(map[string]AllocationConfig, len(orders))
	left := make(map[string]float64, len(balances))
	for supplier, available := range balances {
		left[supplier] = nonNegative(available)
	}
	for _, order := range orders {
		cfg := ConfigFor(configs, order.OrderID)
		if cfg.UsePrepay {
			cfg.PrepayAmount = math.Min(nonNegative(cfg.PrepayAmount), nonNegative(payable(order, cfg)))
			if available, ok := left[order.SupplierID]; ok {
				if cfg.PrepayAmount > available {
					cfg.PrepayAmount = available
				}
				left[order.SupplierID] = Round5(available - cfg.PrepayAmount)
			}
		}
		out[order.OrderID] = cfg
	}
	return out
}

// payable is the amount the order's mode asks to settle before prepay.
func payable(order Order, cfg AllocationConfig) float64 {
	if cfg.Mode == ModeCustom {
		return cfg.CustomAmount
	}
	return nonNegative(Round5(order.OutstandingBalance()))
}

// ConfigFor returns the order's config, or the default when none was set.
func ConfigFor(configs map[string]AllocationConfig, orderID string) AllocationConfig {
	cfg, ok := configs[orderID]
	if !ok {
		return DefaultConfig()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOriginal
	}
	return cfg
}
