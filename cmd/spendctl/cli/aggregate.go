package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/aggregation"
	"github.com/spendboard/spendboard/internal/reports"
)

// AggregateOptions defines available flags for the aggregate command.
type AggregateOptions struct {
	Path   string
	Rate   string
	Format string
	Save   bool
	Period string
	Stdout io.Writer
	Stderr io.Writer
}

// AggregateCommand processes one spreadsheet and prints the result.
func (c *OpsCLI) AggregateCommand(ctx context.Context, opts AggregateOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	format, err := parseFormat(opts.Format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "aggregate: %v\n", err)
		return ExitError
	}
	var override *decimal.Decimal
	if raw := strings.TrimSpace(opts.Rate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			_, _ = fmt.Fprintf(stderr, "aggregate: invalid --rate %q (expected a positive number)\n", opts.Rate)
			return ExitError
		}
		override = &rate
	}
	if opts.Save && c.deps.Store == nil {
		_, _ = fmt.Fprintln(stderr, "aggregate: --save requires a reachable cache")
		return ExitError
	}
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "aggregate: %v\n", err)
		return ExitError
	}

	out, err := c.service(opts.Save).Process(ctx, reports.ProcessInput{
		Filename:     opts.Path,
		Period:       opts.Period,
		Data:         data,
		RateOverride: override,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "aggregate: %v\n", err)
		if errors.Is(err, aggregation.ErrInvalidInput) {
			return ExitInvalidInput
		}
		return ExitError
	}
	if opts.Save {
		if out.Persisted {
			_, _ = fmt.Fprintf(stderr, "saved period %s\n", out.Period)
		} else {
			_, _ = fmt.Fprintf(stderr, "aggregate: period %s was not saved, see log\n", out.Period)
		}
	}
	if err := renderResult(stdout, format, out.Result); err != nil {
		_, _ = fmt.Fprintf(stderr, "aggregate: %v\n", err)
		return ExitError
	}
	return ExitOK
}
