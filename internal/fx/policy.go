// Package fx holds the two-currency conversion rules used by report aggregation.
package fx

import "github.com/shopspring/decimal"

// Currency codes understood natively. Every amount lands in one of the two buckets.
const (
	PrimaryCurrency   = "USD"
	SecondaryCurrency = "GBP"
)

// DefaultRate converts one unit of the secondary currency into the primary one
// when neither the sheet nor the caller supplies a rate.
var DefaultRate = decimal.RequireFromString("1.29")

// SummaryPlaces is the precision of per-currency group sums.
const SummaryPlaces int32 = 2

// Policy describes how a run resolves its exchange rate.
type Policy struct {
	// Fallback is used when the sheet carries no usable rate and no override is given.
	Fallback decimal.Decimal
}

// DefaultPolicy returns the policy backed by DefaultRate.
func DefaultPolicy() Policy {
	return Policy{Fallback: DefaultRate}
}

func (p Policy) fallback() decimal.Decimal {
	if p.Fallback.IsPositive() {
		return p.Fallback
	}
	return DefaultRate
}
