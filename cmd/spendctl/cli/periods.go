package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spendboard/spendboard/internal/reports"
)

// PeriodsOptions defines flags shared by the periods subcommands.
type PeriodsOptions struct {
	Period string
	Format string
	Stdout io.Writer
	Stderr io.Writer
}

type periodList struct {
	Periods []string `json:"periods" yaml:"periods"`
}

// ListCommand prints the cached periods.
func (c *OpsCLI) ListCommand(ctx context.Context, opts PeriodsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	format, err := parseFormat(opts.Format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "periods list: %v\n", err)
		return ExitError
	}
	if c.deps.Store == nil {
		_, _ = fmt.Fprintln(stderr, "periods list: cache unavailable")
		return ExitError
	}
	periods := c.service(true).Periods(ctx)
	if format == FormatTable {
		if len(periods) == 0 {
			_, _ = fmt.Fprintln(stdout, "No cached periods.")
			return ExitOK
		}
		for _, p := range periods {
			_, _ = fmt.Fprintln(stdout, p)
		}
		return ExitOK
	}
	if err := encode(stdout, format, periodList{Periods: periods}); err != nil {
		_, _ = fmt.Fprintf(stderr, "periods list: %v\n", err)
		return ExitError
	}
	return ExitOK
}

// ShowCommand prints the cached result of one period.
func (c *OpsCLI) ShowCommand(ctx context.Context, opts PeriodsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	format, err := parseFormat(opts.Format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "periods show: %v\n", err)
		return ExitError
	}
	if c.deps.Store == nil {
		_, _ = fmt.Fprintln(stderr, "periods show: cache unavailable")
		return ExitError
	}
	result, err := c.service(true).Report(ctx, opts.Period)
	if err != nil {
		if errors.Is(err, reports.ErrPeriodNotFound) {
			_, _ = fmt.Fprintf(stderr, "periods show: no cached result for %q\n", opts.Period)
			return ExitNotFound
		}
		_, _ = fmt.Fprintf(stderr, "periods show: %v\n", err)
		return ExitError
	}
	if err := renderResult(stdout, format, result); err != nil {
		_, _ = fmt.Fprintf(stderr, "periods show: %v\n", err)
		return ExitError
	}
	return ExitOK
}

// ClearCommand drops every cached period.
func (c *OpsCLI) ClearCommand(ctx context.Context, opts PeriodsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if c.deps.Store == nil {
		_, _ = fmt.Fprintln(stderr, "periods clear: cache unavailable")
		return ExitError
	}
	if err := c.service(true).Clear(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "periods clear: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintln(stdout, "Cleared cached periods.")
	return ExitOK
}
