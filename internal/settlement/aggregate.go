package settlement

import (
	"strings"
	"time"
)

// Batch is a full snapshot of the settlement inputs for one payment dialog.
type Batch struct {
	Orders  []Order
	Configs map[string]AllocationConfig
	// PrepayBalances maps supplier id to available prepay credit.
	PrepayBalances map[string]float64
	ExtraFee       *ExtraFee
	RateSelection  RateSelection
	// ResolvedRate is the settlement rate (base to local currency); zero when unresolved.
	ResolvedRate float64
	ActualLump   *ActualLump
	PaymentDate  time.Time
	// Currency is the batch base currency; empty means DefaultCurrency.
	Currency string
}

// Result is the output snapshot of Aggregate.
type Result struct {
	Summary     BatchSummary      `json:"summary"`
	Allocations []OrderAllocation `json:"allocations"`
	Payload     SubmissionPayload `json:"payload"`
}

// BaseCurrency returns the batch currency, defaulting to USD.
func (b Batch) BaseCurrency() string {
	if c := normalizeCurrency(b.Currency); c != "" {
		return c
	}
	return DefaultCurrency
}

// Aggregate folds per-order allocations into the batch summary and payload.
// It has no hidden state: equal batches produce equal results.
func Aggregate(b Batch) Result {
	n := len(b.Orders)
	base := b.BaseCurrency()

	var extraShare float64
	if b.ExtraFee.Active() && n > 0 {
		extraShare = Round5(b.ExtraFee.Amount / float64(n))
	}
	actualShare := b.actualCashShare(n)

	configs := ClampPrepay(b.Orders, b.Configs, b.PrepayBalances)

	res := Result{
		Allocations: make([]OrderAllocation, 0, n),
		Payload: SubmissionPayload{
			OrderIDs:      make([]string, 0, n),
			RateSelection: b.RateSelection,
			LineItems:     make([]LineItem, 0, n),
		},
	}
	if !b.PaymentDate.IsZero() {
		res.Payload.PaymentDate = b.PaymentDate.Format(DateLayout)
	}

	summary := BatchSummary{OrderCount: n, ExtraShare: extraShare}
	var modeCash float64
	for _, order := range b.Orders {
		cfg := configs[order.OrderID]
		alloc := Allocate(order, cfg, extraShare, actualShare)
		res.Allocations = append(res.Allocations, alloc)

		summary.TotalAmount += order.TotalAmount
		summary.TotalDepositPaid += order.DepositPaid
		summary.TotalPriorPaid += order.PriorPaymentsPaid
		summary.TotalPrepayDeduction += alloc.PrepayUsed
		summary.TotalCashPayment += alloc.DisplayCash
		summary.TotalPendingAfter += alloc.PendingAfter
		modeCash += alloc.CashDue

		if alloc.CashDue == 0 && alloc.PrepayUsed == 0 && extraShare == 0 {
			continue
		}
		res.Payload.OrderIDs = append(res.Payload.OrderIDs, order.OrderID)
		res.Payload.LineItems = append(res.Payload.LineItems, lineItem(order.OrderID, cfg, alloc))
	}

	if b.ExtraFee.Active() && feeCurrency(b.ExtraFee, base) == base {
		summary.TotalCashPayment += extraShare * float64(n)
	}

	summary.TotalAmount = Round5(summary.TotalAmount)
	summary.TotalDepositPaid = Round5(summary.TotalDepositPaid)
	summary.TotalPriorPaid = Round5(summary.TotalPriorPaid)
	summary.TotalPrepayDeduction = Round5(summary.TotalPrepayDeduction)
	summary.TotalCashPayment = Round5(summary.TotalCashPayment)
	summary.TotalPendingAfter = Round5(summary.TotalPendingAfter)

	if b.ResolvedRate > 0 {
		local := Round5(summary.TotalCashPayment * b.ResolvedRate)
		summary.LocalCashTotal = &local
	}
	if rate, ok := b.derivedActualRate(base, modeCash); ok {
		summary.ActualRate = &rate
	}
	res.Summary = summary

	if b.RateSelection.RequiresRate() && b.ResolvedRate > 0 {
		rate := b.ResolvedRate
		res.Payload.ResolvedRate = &rate
	}
	if b.ExtraFee.Active() {
		res.Payload.ExtraFee = &ExtraFee{
			Amount:   Round5(b.ExtraFee.Amount),
			Currency: feeCurrency(b.ExtraFee, base),
			Note:     strings.TrimSpace(b.ExtraFee.Note),
		}
	}
	return res
}

// actualCashShare converts the lump sum to the base currency and splits it
// evenly. A local-currency lump cannot be split until a rate is known.
func (b Batch) actualCashShare(n int) float64 {
	if b.RateSelection != RateActual || b.ActualLump == nil || b.ActualLump.Amount <= 0 || n == 0 {
		return 0
	}
	lump := b.ActualLump.Amount
	currency := normalizeCurrency(b.ActualLump.Currency)
	if currency != "" && currency != b.BaseCurrency() {
		if b.ResolvedRate <= 0 {
			return 0
		}
		lump = lump / b.ResolvedRate
	}
	return Round5(lump / float64(n))
}

// derivedActualRate is the local-currency lump divided by the mode-driven cash
// total, i.e. the rate the batch was effectively settled at.
func (b Batch) derivedActualRate(base string, modeCash float64) (float64, bool) {
	if b.RateSelection != RateActual || b.ActualLump == nil || b.ActualLump.Amount <= 0 || modeCash <= 0 {
		return 0, false
	}
	currency := normalizeCurrency(b.ActualLump.Currency)
	if currency == "" || currency == base {
		return 0, false
	}
	return Round4(b.ActualLump.Amount / modeCash), true
}

func lineItem(orderID string, cfg AllocationConfig, alloc OrderAllocation) LineItem {
	item := LineItem{OrderID: orderID, Mode: cfg.Mode}
	if cfg.Mode == ModeCustom {
		amount := cfg.CustomAmount
		item.CustomAmount = &amount
	}
	if alloc.PrepayUsed > 0 {
		prepay := alloc.PrepayUsed
		item.PrepayAmount = &prepay
	}
	if cfg.MarkFullySettled {
		settled := true
		item.MarkFullySettled = &settled
	}
	return item
}

func feeCurrency(fee *ExtraFee, base string) string {
	if c := normalizeCurrency(fee.Currency); c != "" {
		return c
	}
	return base
}
