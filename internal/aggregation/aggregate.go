package aggregation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/fx"
)

// Result is the outcome of one processing run. It is not mutated after Aggregate returns.
type Result struct {
	TeamSummary     []SummaryRow  `json:"teamSummary"`
	CategorySummary []SummaryRow  `json:"categorySummary"`
	RawTransactions []Transaction `json:"rawTransactions"`
	ExchangeRate    float64       `json:"exchangeRate,omitempty"`

	// Stats is not persisted.
	Stats Stats   `json:"-"`
	Rate  fx.Rate `json:"-"`
}

// Options tune a processing run.
type Options struct {
	// Filename selects the sheet format by extension.
	Filename string
	// RateOverride applies when the sheet carries no usable exchange rate.
	RateOverride *decimal.Decimal
	Policy       fx.Policy
}

// Aggregate reads, normalizes and summarizes one upload.
func Aggregate(data []byte, opts Options) (*Result, error) {
	table, err := ReadSheet(data, opts.Filename)
	if err != nil {
		return nil, err
	}
	policy := opts.Policy
	if !policy.Fallback.IsPositive() {
		policy = fx.DefaultPolicy()
	}
	ledger, rate, err := Normalize(table, policy, opts.RateOverride)
	if err != nil {
		return nil, err
	}
	return Summarize(ledger, rate)
}

// Summarize builds both summary views over an already normalized ledger.
func Summarize(ledger Ledger, rate fx.Rate) (*Result, error) {
	team, err := BuildSummary(ledger, ColumnTeam, ColumnCategory, rate.Value)
	if err != nil {
		return nil, fmt.Errorf("team summary: %w", err)
	}
	category, err := BuildSummary(ledger, ColumnCategory, ColumnTeam, rate.Value)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	return &Result{
		TeamSummary:     team,
		CategorySummary: category,
		RawTransactions: ledger.Transactions,
		ExchangeRate:    rate.Float(),
		Stats:           ledger.Stats,
		Rate:            rate,
	}, nil
}
