package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
)

// Exit codes shared by the settle subcommands.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitBlocked = 10
)

// Resolver is the rate resolution the CLI drives.
type Resolver interface {
	Resolve(ctx context.Context, date time.Time) fxrate.Resolution
}

// RateOptions defines flags for the rate resolve command.
type RateOptions struct {
	Date       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RateCommand resolves the settlement rate for a date and prints it. A failed
// resolution exits with ExitBlocked so scripts can prompt for a manual rate.
func RateCommand(ctx context.Context, resolver Resolver, opts RateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(opts.Date))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "rate resolve: invalid date %q (expected YYYY-MM-DD)\n", opts.Date)
		return ExitError
	}
	res := resolver.Resolve(ctx, date)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(res); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rate resolve: encode json: %v\n", err)
			return ExitError
		}
	} else if res.Failed {
		_, _ = fmt.Fprintf(opts.Stdout, "No rate available for %s; enter the rate manually.\n", date.Format("2006-01-02"))
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "Rate for %s: %.4f (source %s)\n", date.Format("2006-01-02"), res.Rate, res.Source)
	}
	if res.Failed {
		return ExitBlocked
	}
	return ExitOK
}
