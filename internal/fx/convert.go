package fx

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Outcome tags how a per-row value was obtained.
type Outcome uint8

const (
	// Converted means the raw value parsed cleanly.
	Converted Outcome = iota
	// Defaulted means the raw value was missing or unparseable and a safe default was used.
	Defaulted
)

func (o Outcome) String() string {
	if o == Defaulted {
		return "defaulted"
	}
	return "converted"
}

// groupedThousands matches digits grouped by commas in threes, e.g. 1,234,567.89.
var groupedThousands = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// Amount is a parsed monetary value together with how it was obtained.
type Amount struct {
	Value   decimal.Decimal
	Outcome Outcome
}

// ParseAmount converts a raw cell to a decimal. Empty, non-numeric or out of float64
// range input yields zero, Defaulted. Comma thousands separators and a leading
// currency symbol are tolerated; a decimal comma such as "12,50" is not a number.
func ParseAmount(raw string) Amount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return defaulted()
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.TrimLeft(s, "$£€ ")
	if strings.Contains(s, ",") {
		if !groupedThousands.MatchString(strings.TrimPrefix(s, "-")) {
			return defaulted()
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return defaulted()
	}
	if f := v.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return defaulted()
	}
	if neg {
		v = v.Neg()
	}
	return Amount{Value: v, Outcome: Converted}
}

func defaulted() Amount {
	return Amount{Value: decimal.Zero, Outcome: Defaulted}
}

// Bucket splits an amount into primary and secondary currency columns. Codes are
// compared exactly after trimming; anything else, "usd" included, contributes zero to both.
func Bucket(currency string, amount decimal.Decimal) (primary, secondary decimal.Decimal) {
	switch strings.TrimSpace(currency) {
	case PrimaryCurrency:
		return amount, decimal.Zero
	case SecondaryCurrency:
		return decimal.Zero, amount
	default:
		return decimal.Zero, decimal.Zero
	}
}

// RoundSum rounds a per-currency group sum to SummaryPlaces using banker's rounding.
func RoundSum(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(SummaryPlaces)
}

// Combine expresses a primary/secondary pair in primary-currency terms.
func Combine(primary, secondary, rate decimal.Decimal) decimal.Decimal {
	return primary.Add(secondary.Mul(rate))
}
