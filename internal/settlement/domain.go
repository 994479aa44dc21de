package settlement

import (
	"strings"
	"time"
)

// DefaultCurrency is the base currency order balances are kept in.
const DefaultCurrency = "USD"

// Mode selects how the amount to pay for an order is derived.
type Mode string

const (
	// ModeOriginal pays the order's own outstanding balance.
	ModeOriginal Mode = "original"
	// ModeCustom pays a user-entered amount.
	ModeCustom Mode = "custom"
)

// Valid reports whether m is a known payment mode.
func (m Mode) Valid() bool {
	return m == ModeOriginal || m == ModeCustom
}

// RateSelection enumerates the settlement rate strategies.
type RateSelection string

const (
	// RateOriginal keeps each order's recorded rate; nothing is resolved.
	RateOriginal RateSelection = "original"
	// RatePaymentDate applies one rate resolved for the payment date.
	RatePaymentDate RateSelection = "paymentDateRate"
	// RateActual splits a lump settlement amount evenly across the batch.
	RateActual RateSelection = "actualRate"
)

// Valid reports whether r is a known rate selection.
func (r RateSelection) Valid() bool {
	switch r {
	case RateOriginal, RatePaymentDate, RateActual:
		return true
	}
	return false
}

// RequiresRate reports whether the selection needs a resolved settlement rate.
func (r RateSelection) RequiresRate() bool {
	return r == RatePaymentDate || r == RateActual
}

// Order is a purchase order selected for payment. Amounts are in the base currency.
type Order struct {
	OrderID           string  `json:"orderId"`
	SupplierID        string  `json:"supplierId"`
	TotalAmount       float64 `json:"totalAmount"`
	DepositPaid       float64 `json:"depositPaid"`
	PriorPaymentsPaid float64 `json:"priorPaymentsPaid"`
	// OrderRate is the rate recorded on the order, used downstream for RateOriginal.
	OrderRate float64 `json:"orderRate,omitempty"`
}

// OutstandingBalance is the amount still owed. Malformed input may make it negative.
func (o Order) OutstandingBalance() float64 {
	return o.TotalAmount - o.DepositPaid - o.PriorPaymentsPaid
}

// AllocationConfig holds the user's per-order payment options.
type AllocationConfig struct {
	Mode             Mode    `json:"mode"`
	CustomAmount     float64 `json:"customAmount,omitempty"`
	UsePrepay        bool    `json:"usePrepay,omitempty"`
	PrepayAmount     float64 `json:"prepayAmount,omitempty"`
	MarkFullySettled bool    `json:"markFullySettled,omitempty"`
}

// DefaultConfig is the config every selected order starts with.
func DefaultConfig() AllocationConfig {
	return AllocationConfig{Mode: ModeOriginal}
}

// PrepayBalance is a supplier's available prepay credit.
type PrepayBalance struct {
	SupplierID string    `json:"supplierId"`
	Available  float64   `json:"balanceAvailable"`
	AsOf       time.Time `json:"asOf"`
}

// ExtraFee is a batch-level charge split evenly across the selected orders.
type ExtraFee struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Note     string  `json:"note"`
}

// Active reports whether the fee carries a positive amount.
func (f *ExtraFee) Active() bool {
	return f != nil && f.Amount > 0
}

// ActualLump is the settlement amount actually paid for the whole batch.
type ActualLump struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// OrderAllocation is one order's contribution to the batch.
type OrderAllocation struct {
	OrderID    string  `json:"orderId"`
	Remaining  float64 `json:"remaining"`
	PrepayUsed float64 `json:"prepayUsed"`
	// CashDue is the mode-driven amount recorded in the submission.
	CashDue float64 `json:"cashDue"`
	// DisplayCash is CashDue, or the actual-rate lump share when one applies.
	DisplayCash  float64 `json:"displayCash"`
	ExtraShare   float64 `json:"extraShare"`
	PendingAfter float64 `json:"pendingAfter"`
}

// BatchSummary is the live summary shown before submit.
type BatchSummary struct {
	OrderCount           int      `json:"orderCount"`
	TotalAmount          float64  `json:"totalAmount"`
	TotalDepositPaid     float64  `json:"totalDepositPaid"`
	TotalPriorPaid       float64  `json:"totalPriorPaid"`
	TotalPrepayDeduction float64  `json:"totalPrepayDeduction"`
	TotalCashPayment     float64  `json:"totalCashPayment"`
	TotalPendingAfter    float64  `json:"totalPendingAfter"`
	ExtraShare           float64  `json:"extraShare"`
	LocalCashTotal       *float64 `json:"localCashTotal,omitempty"`
	ActualRate           *float64 `json:"actualRate,omitempty"`
}

// LineItem is one order's entry in the submission payload.
type LineItem struct {
	OrderID          string   `json:"orderId"`
	Mode             Mode     `json:"mode"`
	CustomAmount     *float64 `json:"customAmount,omitempty"`
	PrepayAmount     *float64 `json:"prepayAmount,omitempty"`
	MarkFullySettled *bool    `json:"markFullySettled,omitempty"`
}

// SubmissionPayload is sent to the payment submission endpoint.
type SubmissionPayload struct {
	OrderIDs      []string      `json:"orderIds"`
	PaymentDate   string        `json:"paymentDate"`
	RateSelection RateSelection `json:"rateSelection"`
	ResolvedRate  *float64      `json:"resolvedRate,omitempty"`
	LineItems     []LineItem    `json:"lineItems"`
	ExtraFee      *ExtraFee     `json:"extraFee,omitempty"`
}

// DateLayout is the wire format of payment dates.
const DateLayout = "2006-01-02"

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
