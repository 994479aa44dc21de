package settlementhttp

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/settle/internal/settlement"
)

type orderDTO struct {
	OrderID           string  `json:"orderId" validate:"required"`
	SupplierID        string  `json:"supplierId"`
	TotalAmount       float64 `json:"totalAmount"`
	DepositPaid       float64 `json:"depositPaid"`
	PriorPaymentsPaid float64 `json:"priorPaymentsPaid"`
	OrderRate         float64 `json:"orderRate" validate:"gte=0"`
}

func (o orderDTO) toOrder() settlement.Order {
	return settlement.Order{
		OrderID:           strings.TrimSpace(o.OrderID),
		SupplierID:        strings.TrimSpace(o.SupplierID),
		TotalAmount:       o.TotalAmount,
		DepositPaid:       o.DepositPaid,
		PriorPaymentsPaid: o.PriorPaymentsPaid,
		OrderRate:         o.OrderRate,
	}
}

type configDTO struct {
	Mode             string  `json:"mode" validate:"omitempty,oneof=original custom"`
	CustomAmount     float64 `json:"customAmount" validate:"gte=0"`
	UsePrepay        bool    `json:"usePrepay"`
	PrepayAmount     float64 `json:"prepayAmount" validate:"gte=0"`
	MarkFullySettled bool    `json:"markFullySettled"`
}

func (c configDTO) toConfig() settlement.AllocationConfig {
	mode := settlement.Mode(c.Mode)
	if mode == "" {
		mode = settlement.ModeOriginal
	}
	return settlement.AllocationConfig{
		Mode:             mode,
		CustomAmount:     c.CustomAmount,
		UsePrepay:        c.UsePrepay,
		PrepayAmount:     c.PrepayAmount,
		MarkFullySettled: c.MarkFullySettled,
	}
}

type extraFeeDTO struct {
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
	Note     string  `json:"note" validate:"max=500"`
}

type lumpDTO struct {
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
}

type previewRequest struct {
	Orders         []orderDTO           `json:"orders" validate:"dive"`
	Configs        map[string]configDTO `json:"configs" validate:"dive"`
	PrepayBalances map[string]float64   `json:"prepayBalances"`
	ExtraFee       *extraFeeDTO         `json:"extraFee"`
	RateSelection  string               `json:"rateSelection" validate:"omitempty,oneof=original paymentDateRate actualRate"`
	ResolvedRate   float64              `json:"resolvedRate" validate:"gte=0"`
	RateFetching   bool                 `json:"rateFetching"`
	ActualLump     *lumpDTO             `json:"actualLump"`
	PaymentDate    string               `json:"paymentDate"`
	Currency       string               `json:"currency" validate:"omitempty,len=3"`
}

func (r previewRequest) toBatch() (settlement.Batch, error) {
	date, err := parseDate(r.PaymentDate)
	if err != nil {
		return settlement.Batch{}, err
	}
	b := settlement.Batch{
		Orders:         make([]settlement.Order, 0, len(r.Orders)),
		Configs:        make(map[string]settlement.AllocationConfig, len(r.Configs)),
		PrepayBalances: r.PrepayBalances,
		RateSelection:  selection(r.RateSelection),
		ResolvedRate:   r.ResolvedRate,
		PaymentDate:    date,
		Currency:       r.Currency,
	}
	for _, o := range r.Orders {
		b.Orders = append(b.Orders, o.toOrder())
	}
	for id, cfg := range r.Configs {
		b.Configs[id] = cfg.toConfig()
	}
	if r.ExtraFee != nil {
		b.ExtraFee = &settlement.ExtraFee{Amount: r.ExtraFee.Amount, Currency: r.ExtraFee.Currency, Note: r.ExtraFee.Note}
	}
	if r.ActualLump != nil {
		b.ActualLump = &settlement.ActualLump{Amount: r.ActualLump.Amount, Currency: r.ActualLump.Currency}
	}
	return b, nil
}

type previewResponse struct {
	settlement.Result
	Decision settlement.Decision `json:"decision"`
}

type resolveRequest struct {
	Date string `json:"date" validate:"required"`
}

type openSessionRequest struct {
	Orders   []orderDTO `json:"orders" validate:"required,min=1,dive"`
	Currency string     `json:"currency" validate:"omitempty,len=3"`
	AsOf     string     `json:"asOf"`
}

type updateSessionRequest struct {
	PaymentDate   *string      `json:"paymentDate"`
	RateSelection *string      `json:"rateSelection" validate:"omitempty,oneof=original paymentDateRate actualRate"`
	ExtraFee      *extraFeeDTO `json:"extraFee"`
	ClearExtraFee bool         `json:"clearExtraFee"`
	ActualLump    *lumpDTO     `json:"actualLump"`
	ManualRate    *float64     `json:"manualRate" validate:"omitempty,gt=0"`
}

type submitRequest struct {
	AuthorizationCode string `json:"authorizationCode" validate:"required"`
}

type sessionResponse struct {
	ID       string               `json:"id"`
	Rate     settlement.RateState `json:"rate"`
	Preview  settlement.Result    `json:"preview"`
	Decision settlement.Decision  `json:"decision"`
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(settlement.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", raw)
	}
	return date, nil
}

func selection(raw string) settlement.RateSelection {
	if raw == "" {
		return settlement.RateOriginal
	}
	return settlement.RateSelection(raw)
}
