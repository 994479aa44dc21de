package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/settle/internal/settlement"
)

// PreviewOptions defines flags for the preview command.
type PreviewOptions struct {
	File       string
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// PreviewFile is the batch snapshot read by the preview command.
type PreviewFile struct {
	Orders         []settlement.Order                     `json:"orders"`
	Configs        map[string]settlement.AllocationConfig `json:"configs"`
	PrepayBalances map[string]float64                     `json:"prepayBalances"`
	ExtraFee       *settlement.ExtraFee                   `json:"extraFee"`
	RateSelection  settlement.RateSelection               `json:"rateSelection"`
	ResolvedRate   float64                                `json:"resolvedRate"`
	ActualLump     *settlement.ActualLump                 `json:"actualLump"`
	PaymentDate    string                                 `json:"paymentDate"`
	Currency       string                                 `json:"currency"`
}

// PreviewSummary is the JSON output of the preview command.
type PreviewSummary struct {
	settlement.Result
	Decision settlement.Decision `json:"decision"`
}

// PreviewCommand aggregates a batch file and prints the summary and gate
// decision. A blocked batch exits with ExitBlocked.
func PreviewCommand(opts PreviewOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	in, closeFn, err := openInput(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "preview: %v\n", err)
		return ExitError
	}
	defer closeFn()

	var file PreviewFile
	if err := json.NewDecoder(in).Decode(&file); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "preview: decode batch: %v\n", err)
		return ExitError
	}
	batch, err := file.batch()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "preview: %v\n", err)
		return ExitError
	}
	summary := PreviewSummary{
		Result:   settlement.Aggregate(batch),
		Decision: settlement.Evaluate(settlement.GateStateFor(batch, false)),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "preview: encode json: %v\n", err)
			return ExitError
		}
	} else {
		renderPreviewHuman(opts.Stdout, batch.BaseCurrency(), summary)
	}
	if !summary.Decision.Allowed {
		return ExitBlocked
	}
	return ExitOK
}

func openInput(opts PreviewOptions) (io.Reader, func(), error) {
	if opts.File == "" || opts.File == "-" {
		if opts.Stdin == nil {
			return os.Stdin, func() {}, nil
		}
		return opts.Stdin, func() {}, nil
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (f PreviewFile) batch() (settlement.Batch, error) {
	var date time.Time
	if raw := strings.TrimSpace(f.PaymentDate); raw != "" {
		parsed, err := time.Parse(settlement.DateLayout, raw)
		if err != nil {
			return settlement.Batch{}, fmt.Errorf("invalid paymentDate %q (expected YYYY-MM-DD)", raw)
		}
		date = parsed
	}
	selection := f.RateSelection
	if selection == "" {
		selection = settlement.RateOriginal
	}
	return settlement.Batch{
		Orders:         f.Orders,
		Configs:        f.Configs,
		PrepayBalances: f.PrepayBalances,
		ExtraFee:       f.ExtraFee,
		RateSelection:  selection,
		ResolvedRate:   f.ResolvedRate,
		ActualLump:     f.ActualLump,
		PaymentDate:    date,
		Currency:       f.Currency,
	}, nil
}

func renderPreviewHuman(out io.Writer, currency string, summary PreviewSummary) {
	p := message.NewPrinter(language.English)
	s := summary.Summary
	_, _ = p.Fprintf(out, "Settlement preview: %d order(s), %d line item(s)\n", s.OrderCount, len(summary.Payload.LineItems))
	for _, alloc := range summary.Allocations {
		_, _ = p.Fprintf(out, " - %s cash %.2f prepay %.2f pending %.2f\n", alloc.OrderID, alloc.DisplayCash, alloc.PrepayUsed, alloc.PendingAfter)
	}
	_, _ = p.Fprintf(out, "Total amount:      %s %.2f\n", currency, s.TotalAmount)
	_, _ = p.Fprintf(out, "Prepay deduction:  %s %.2f\n", currency, s.TotalPrepayDeduction)
	_, _ = p.Fprintf(out, "Cash payment:      %s %.2f\n", currency, s.TotalCashPayment)
	_, _ = p.Fprintf(out, "Pending after:     %s %.2f\n", currency, s.TotalPendingAfter)
	if s.LocalCashTotal != nil {
		_, _ = p.Fprintf(out, "Local cash total:  %.2f\n", *s.LocalCashTotal)
	}
	if summary.Decision.Allowed {
		_, _ = fmt.Fprintln(out, "Ready to submit.")
		return
	}
	blockers := make([]string, len(summary.Decision.Blockers))
	for i, b := range summary.Decision.Blockers {
		blockers[i] = string(b)
	}
	_, _ = fmt.Fprintf(out, "Blocked: %s\n", strings.Join(blockers, ", "))
}
