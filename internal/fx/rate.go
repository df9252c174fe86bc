package fx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource records where the effective rate of a run came from.
type RateSource string

const (
	SourceSheet    RateSource = "sheet"
	SourceOverride RateSource = "override"
	SourceDefault  RateSource = "default"
)

// Rate is the single exchange rate governing one processing run.
type Rate struct {
	Value  decimal.Decimal
	Source RateSource
}

// Float returns the rate as a float64 for JSON payloads.
func (r Rate) Float() float64 {
	return r.Value.InexactFloat64()
}

func (r Rate) String() string {
	return fmt.Sprintf("%s (%s)", r.Value.String(), r.Source)
}

// Resolve picks the run rate. sheetValue is the first non-missing cell of the
// exchange rate column, or "" when there is none. A value that does not parse to
// a positive decimal falls through to the override and then to the policy fallback.
func (p Policy) Resolve(sheetValue string, override *decimal.Decimal) Rate {
	if amt := ParseAmount(sheetValue); amt.Outcome == Converted && amt.Value.IsPositive() {
		return Rate{Value: amt.Value, Source: SourceSheet}
	}
	if override != nil && override.IsPositive() {
		return Rate{Value: *override, Source: SourceOverride}
	}
	return Rate{Value: p.fallback(), Source: SourceDefault}
}
