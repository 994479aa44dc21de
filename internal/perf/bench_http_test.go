package perf

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/settle/internal/settlement"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
	settlementhttp "github.com/odyssey-erp/settle/internal/settlement/http"
)

func largeBatch(n int) settlement.Batch {
	b := settlement.Batch{
		Orders:         make([]settlement.Order, 0, n),
		Configs:        make(map[string]settlement.AllocationConfig, n),
		PrepayBalances: map[string]float64{},
		ExtraFee:       &settlement.ExtraFee{Amount: 35, Note: "wire"},
		RateSelection:  settlement.RatePaymentDate,
		ResolvedRate:   7.1932,
		PaymentDate:    time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("PO-%04d", i)
		supplier := fmt.Sprintf("S%d", i%7)
		b.Orders = append(b.Orders, settlement.Order{OrderID: id, SupplierID: supplier, TotalAmount: 1000 + float64(i), DepositPaid: 100})
		b.Configs[id] = settlement.AllocationConfig{Mode: settlement.ModeOriginal, UsePrepay: i%3 == 0, PrepayAmount: 50}
		b.PrepayBalances[supplier] = 400
	}
	return b
}

func BenchmarkAggregate(b *testing.B) {
	batch := largeBatch(500)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = settlement.Aggregate(batch)
	}
}

func TestPreviewLatencyTargets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := fxrate.NewResolver(nil, fxrate.WithLogger(logger))
	h := settlementhttp.NewHandler(logger, settlement.NewSessionStore(), resolver, nil, nil)
	r := chi.NewRouter()
	r.Route("/settlement", h.MountRoutes)

	var orders []string
	for i := 0; i < 200; i++ {
		orders = append(orders, fmt.Sprintf(`{"orderId":"PO-%d","supplierId":"S%d","totalAmount":%d}`, i, i%5, 100+i))
	}
	body := `{"orders":[` + strings.Join(orders, ",") + `],"paymentDate":"2025-03-14"}`

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/settlement/preview", strings.NewReader(body)))
		samples = append(samples, time.Since(start))
		if rec.Code != http.StatusOK {
			t.Fatalf("preview returned %d: %s", rec.Code, rec.Body.String())
		}
	}
	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("preview latency regression: p95=%s threshold=%s", p95, 250*time.Millisecond)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
