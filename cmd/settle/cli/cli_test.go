package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/settle/internal/settlement"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
)

type stubResolver struct {
	res  fxrate.Resolution
	date time.Time
}

func (s *stubResolver) Resolve(_ context.Context, date time.Time) fxrate.Resolution {
	s.date = date
	return s.res
}

func TestRateCommandPrintsRate(t *testing.T) {
	resolver := &stubResolver{res: fxrate.Resolution{Rate: 7.2, Source: "providerC"}}
	var stdout, stderr bytes.Buffer

	code := RateCommand(context.Background(), resolver, RateOptions{Date: "2025-03-14", Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, ExitOK, code)
	require.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), resolver.date)
	require.Contains(t, stdout.String(), "7.2000 (source providerC)")
	require.Empty(t, stderr.String())
}

func TestRateCommandFailedResolution(t *testing.T) {
	resolver := &stubResolver{res: fxrate.Resolution{Failed: true}}
	var stdout bytes.Buffer

	code := RateCommand(context.Background(), resolver, RateOptions{Date: "2025-03-14", JSONOutput: true, Stdout: &stdout})
	require.Equal(t, ExitBlocked, code)

	var res fxrate.Resolution
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.True(t, res.Failed)
}

func TestRateCommandInvalidDate(t *testing.T) {
	var stderr bytes.Buffer
	code := RateCommand(context.Background(), &stubResolver{}, RateOptions{Date: "14-03-2025", Stderr: &stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "invalid date")
}

const readyBatch = `{
	"orders": [
		{"orderId": "PO-1", "supplierId": "S1", "totalAmount": 100},
		{"orderId": "PO-2", "supplierId": "S2", "totalAmount": 250.5}
	],
	"extraFee": {"amount": 10, "currency": "USD", "note": "wire fee"},
	"paymentDate": "2025-03-14"
}`

func TestPreviewCommandFromStdin(t *testing.T) {
	var stdout bytes.Buffer
	code := PreviewCommand(PreviewOptions{Stdin: strings.NewReader(readyBatch), Stdout: &stdout})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "2 order(s), 2 line item(s)")
	require.Contains(t, stdout.String(), "Cash payment:      USD 360.50")
	require.Contains(t, stdout.String(), "Ready to submit.")
}

func TestPreviewCommandJSONFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(readyBatch), 0o600))
	var stdout bytes.Buffer

	code := PreviewCommand(PreviewOptions{File: path, JSONOutput: true, Stdout: &stdout})
	require.Equal(t, ExitOK, code)

	var summary PreviewSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 360.5, summary.Summary.TotalCashPayment)
	require.True(t, summary.Decision.Allowed)
}

func TestPreviewCommandBlocked(t *testing.T) {
	var stdout bytes.Buffer
	batch := `{"orders": [{"orderId": "PO-1", "totalAmount": 10}], "rateSelection": "paymentDateRate"}`

	code := PreviewCommand(PreviewOptions{Stdin: strings.NewReader(batch), Stdout: &stdout})
	require.Equal(t, ExitBlocked, code)
	require.Contains(t, stdout.String(), "Blocked: "+string(settlement.BlockerNoPaymentDate)+", "+string(settlement.BlockerRateUnresolved))
}

func TestPreviewCommandErrors(t *testing.T) {
	var stderr bytes.Buffer
	code := PreviewCommand(PreviewOptions{File: filepath.Join(t.TempDir(), "missing.json"), Stderr: &stderr})
	require.Equal(t, ExitError, code)

	stderr.Reset()
	code = PreviewCommand(PreviewOptions{Stdin: strings.NewReader(`{"paymentDate": "soon"}`), Stderr: &stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "invalid paymentDate")
}
