package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func twoOrderBatch() Batch {
	return Batch{
		Orders: []Order{
			{OrderID: "PO-1", SupplierID: "S1", TotalAmount: 100},
			{OrderID: "PO-2", SupplierID: "S2", TotalAmount: 300.50, DepositPaid: 50},
		},
		RateSelection: RateOriginal,
		PaymentDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregateTwoOrdersOriginalMode(t *testing.T) {
	res := Aggregate(twoOrderBatch())

	require.Equal(t, 2, res.Summary.OrderCount)
	require.Equal(t, 350.50, res.Summary.TotalCashPayment)
	require.Zero(t, res.Summary.TotalPendingAfter)
	require.Equal(t, 400.50, res.Summary.TotalAmount)
	require.Equal(t, 50.0, res.Summary.TotalDepositPaid)
	require.Len(t, res.Payload.LineItems, 2)
	require.Equal(t, []string{"PO-1", "PO-2"}, res.Payload.OrderIDs)
	require.Equal(t, "2025-03-14", res.Payload.PaymentDate)
	require.Nil(t, res.Payload.ResolvedRate)
	require.Nil(t, res.Payload.ExtraFee)
}

func TestAggregateExtraFeeCountedOnce(t *testing.T) {
	b := twoOrderBatch()
	b.ExtraFee = &ExtraFee{Amount: 10, Currency: "usd", Note: "  bank charge "}
	res := Aggregate(b)

	require.Equal(t, 5.0, res.Summary.ExtraShare)
	for _, alloc := range res.Allocations {
		require.Equal(t, 5.0, alloc.ExtraShare)
	}
	require.Equal(t, 360.50, res.Summary.TotalCashPayment)
	require.NotNil(t, res.Payload.ExtraFee)
	require.Equal(t, "USD", res.Payload.ExtraFee.Currency)
	require.Equal(t, "bank charge", res.Payload.ExtraFee.Note)
}

func TestAggregateExtraFeeUnevenSplit(t *testing.T) {
	b := twoOrderBatch()
	b.Orders = append(b.Orders, Order{OrderID: "PO-3", TotalAmount: 49.5})
	b.ExtraFee = &ExtraFee{Amount: 10, Note: "wire"}
	res := Aggregate(b)

	n := float64(len(b.Orders))
	require.Equal(t, 3.33333, res.Summary.ExtraShare)
	require.InDelta(t, Round5(b.ExtraFee.Amount), res.Summary.ExtraShare*n, n*1e-5)
	require.Equal(t, Round5(400+res.Summary.ExtraShare*n), res.Summary.TotalCashPayment)
}

func TestAggregateForeignExtraFeeNotAddedToBaseTotal(t *testing.T) {
	b := twoOrderBatch()
	b.ExtraFee = &ExtraFee{Amount: 72, Currency: "CNY", Note: "wire"}
	res := Aggregate(b)

	require.Equal(t, 36.0, res.Summary.ExtraShare)
	require.Equal(t, 350.50, res.Summary.TotalCashPayment)
	require.Equal(t, "CNY", res.Payload.ExtraFee.Currency)
}

func TestAggregatePrepayClampedAcrossSupplier(t *testing.T) {
	b := Batch{
		Orders: []Order{
			{OrderID: "PO-1", SupplierID: "S1", TotalAmount: 100},
			{OrderID: "PO-2", SupplierID: "S1", TotalAmount: 100},
		},
		Configs: map[string]AllocationConfig{
			"PO-1": {Mode: ModeOriginal, UsePrepay: true, PrepayAmount: 60},
			"PO-2": {Mode: ModeOriginal, UsePrepay: true, PrepayAmount: 60},
		},
		PrepayBalances: map[string]float64{"S1": 80},
	}
	res := Aggregate(b)

	require.Equal(t, 80.0, res.Summary.TotalPrepayDeduction)
	require.Equal(t, 120.0, res.Summary.TotalCashPayment)
	require.Equal(t, 60.0, *res.Payload.LineItems[0].PrepayAmount)
	require.Equal(t, 20.0, *res.Payload.LineItems[1].PrepayAmount)
}

func TestAggregateConservation(t *testing.T) {
	b := Batch{
		Orders: []Order{
			{OrderID: "PO-1", SupplierID: "S1", TotalAmount: 1000, DepositPaid: 200},
			{OrderID: "PO-2", SupplierID: "S1", TotalAmount: 333.33333, PriorPaymentsPaid: 33.33333},
			{OrderID: "PO-3", SupplierID: "S2", TotalAmount: 50},
		},
		Configs: map[string]AllocationConfig{
			"PO-1": {Mode: ModeCustom, CustomAmount: 300, UsePrepay: true, PrepayAmount: 100},
			"PO-2": {Mode: ModeOriginal, UsePrepay: true, PrepayAmount: 50},
		},
		PrepayBalances: map[string]float64{"S1": 500},
	}
	res := Aggregate(b)

	for i, alloc := range res.Allocations {
		order := b.Orders[i]
		got := Round5(alloc.PrepayUsed + alloc.CashDue + alloc.PendingAfter)
		require.Equal(t, Round5(order.OutstandingBalance()), got, order.OrderID)
	}
}

func TestAggregateNonNegative(t *testing.T) {
	b := Batch{
		Orders: []Order{
			{OrderID: "PO-1", TotalAmount: 10, DepositPaid: 20},
			{OrderID: "PO-2", TotalAmount: 10},
		},
		Configs: map[string]AllocationConfig{
			"PO-2": {Mode: ModeCustom, CustomAmount: 50, UsePrepay: true, PrepayAmount: -5},
		},
	}
	res := Aggregate(b)
	for _, alloc := range res.Allocations {
		require.GreaterOrEqual(t, alloc.CashDue, 0.0)
		require.GreaterOrEqual(t, alloc.PrepayUsed, 0.0)
		require.GreaterOrEqual(t, alloc.PendingAfter, 0.0)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	b := twoOrderBatch()
	b.ExtraFee = &ExtraFee{Amount: 7, Note: "fee"}
	b.RateSelection = RatePaymentDate
	b.ResolvedRate = 7.2

	require.Equal(t, Aggregate(b), Aggregate(b))
}

func TestAggregateSkipsZeroLines(t *testing.T) {
	b := Batch{Orders: []Order{
		{OrderID: "PO-1", TotalAmount: 100, DepositPaid: 100},
		{OrderID: "PO-2", TotalAmount: 40},
	}}
	res := Aggregate(b)

	require.Len(t, res.Allocations, 2)
	require.Equal(t, []string{"PO-2"}, res.Payload.OrderIDs)
	require.Len(t, res.Payload.LineItems, 1)
}

func TestAggregatePaymentDateRate(t *testing.T) {
	b := twoOrderBatch()
	b.RateSelection = RatePaymentDate
	b.ResolvedRate = 7.2
	res := Aggregate(b)

	require.NotNil(t, res.Payload.ResolvedRate)
	require.Equal(t, 7.2, *res.Payload.ResolvedRate)
	require.NotNil(t, res.Summary.LocalCashTotal)
	require.InDelta(t, 2523.6, *res.Summary.LocalCashTotal, 1e-9)
}

func TestAggregateActualRateLump(t *testing.T) {
	b := twoOrderBatch()
	b.RateSelection = RateActual
	b.ResolvedRate = 7
	b.ActualLump = &ActualLump{Amount: 700, Currency: "CNY"}
	res := Aggregate(b)

	for _, alloc := range res.Allocations {
		require.Equal(t, 50.0, alloc.DisplayCash)
	}
	require.Equal(t, 100.0, res.Allocations[0].CashDue)
	require.Equal(t, 250.50, res.Allocations[1].CashDue)
	require.Equal(t, 100.0, res.Summary.TotalCashPayment)
	require.NotNil(t, res.Summary.ActualRate)
	require.Equal(t, Round4(700/350.50), *res.Summary.ActualRate)
	require.Len(t, res.Payload.LineItems, 2)
}

func TestAggregateActualRateLocalLumpNeedsRate(t *testing.T) {
	b := twoOrderBatch()
	b.RateSelection = RateActual
	b.ActualLump = &ActualLump{Amount: 700, Currency: "CNY"}
	res := Aggregate(b)

	require.Equal(t, 350.50, res.Summary.TotalCashPayment)
	require.Nil(t, res.Payload.ResolvedRate)
}

func TestAggregateEmptyBatch(t *testing.T) {
	res := Aggregate(Batch{ExtraFee: &ExtraFee{Amount: 10, Note: "x"}})

	require.Zero(t, res.Summary.OrderCount)
	require.Zero(t, res.Summary.ExtraShare)
	require.Empty(t, res.Payload.LineItems)
	require.Empty(t, res.Payload.PaymentDate)
}
