package submission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/settle/internal/settlement"
)

func samplePayload() settlement.SubmissionPayload {
	rate := 7.2
	return settlement.SubmissionPayload{
		OrderIDs:      []string{"PO-1"},
		PaymentDate:   "2025-03-14",
		RateSelection: settlement.RatePaymentDate,
		ResolvedRate:  &rate,
		LineItems:     []settlement.LineItem{{OrderID: "PO-1", Mode: settlement.ModeOriginal}},
	}
}

func TestSubmitPostsPayload(t *testing.T) {
	var (
		gotAuth string
		gotKey  string
		got     settlement.SubmissionPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("X-Authorization-Code")
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"paymentId":"PAY-1"}`)
	}))
	defer srv.Close()

	receipt, err := NewClient(srv.URL, time.Second).Submit(context.Background(), samplePayload(), " 123456 ")
	require.NoError(t, err)
	require.Equal(t, "123456", gotAuth)
	require.Equal(t, receipt.IdempotencyKey, gotKey)
	require.Equal(t, http.StatusCreated, receipt.Status)
	require.JSONEq(t, `{"paymentId":"PAY-1"}`, string(receipt.Body))
	require.Equal(t, samplePayload(), got)
}

func TestSubmitRequiresAuthorizationCode(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:0", time.Second).Submit(context.Background(), samplePayload(), "  ")
	require.ErrorIs(t, err, ErrAuthorizationRequired)
}

func TestSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "limit exceeded", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	receipt, err := NewClient(srv.URL, time.Second).Submit(context.Background(), samplePayload(), "123456")
	require.ErrorIs(t, err, ErrSubmitRejected)
	require.Equal(t, http.StatusUnprocessableEntity, receipt.Status)
	require.Nil(t, receipt.Body)
}
