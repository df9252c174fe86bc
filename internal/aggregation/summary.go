package aggregation

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/fx"
)

// Labels used by synthetic summary rows.
const (
	SubtotalLabel   = "TOTAL"
	GrandTotalLabel = "GRAND TOTAL"
)

var keyCombined = "Total " + fx.PrimaryCurrency

// RowKind distinguishes detail, subtotal and grand-total rows.
type RowKind uint8

const (
	DetailRow RowKind = iota
	SubtotalRow
	GrandTotalRow
)

// SummaryRow is one line of a grouped summary.
type SummaryRow struct {
	Kind          RowKind
	PrimaryAxis   string
	SecondaryAxis string
	Primary       string
	Secondary     string
	USD           decimal.Decimal
	GBP           decimal.Decimal
	// Total is USD + GBP * rate.
	Total decimal.Decimal
}

// MarshalJSON writes {"<primary axis>": ..., "<secondary axis>": ..., "USD", "GBP", "Total USD"}.
func (r SummaryRow) MarshalJSON() ([]byte, error) {
	return encodeObject([]Field{
		{Name: r.PrimaryAxis, Value: r.Primary},
		{Name: r.SecondaryAxis, Value: r.Secondary},
		{Name: keyPrimary, Value: r.USD.InexactFloat64()},
		{Name: keySecondary, Value: r.GBP.InexactFloat64()},
		{Name: keyCombined, Value: r.Total.InexactFloat64()},
	})
}

// UnmarshalJSON restores a row written by MarshalJSON. The first two keys name the axes.
func (r *SummaryRow) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = SummaryRow{}
	var axes []Field
	for _, f := range fields {
		switch f.Name {
		case keyPrimary:
			r.USD = decimalFromJSON(f.Value)
		case keySecondary:
			r.GBP = decimalFromJSON(f.Value)
		case keyCombined:
			r.Total = decimalFromJSON(f.Value)
		default:
			axes = append(axes, f)
		}
	}
	if len(axes) != 2 {
		return errors.New("summary row: expected two grouping columns")
	}
	r.PrimaryAxis, r.SecondaryAxis = axes[0].Name, axes[1].Name
	r.Primary, _ = axes[0].Value.(string)
	r.Secondary, _ = axes[1].Value.(string)
	switch {
	case r.Primary == GrandTotalLabel && r.Secondary == "":
		r.Kind = GrandTotalRow
	case r.Secondary == SubtotalLabel:
		r.Kind = SubtotalRow
	}
	return nil
}

type groupKey struct {
	primary   string
	secondary string
}

type bucket struct {
	usd decimal.Decimal
	gbp decimal.Decimal
}

// BuildSummary groups the ledger by (primaryAxis, secondaryAxis) and emits detail
// rows, one subtotal per primary value and a final grand total. Primary values and
// the secondary values beneath them are emitted in ascending order. Group sums are
// rounded before totals are derived from them.
func BuildSummary(ledger Ledger, primaryAxis, secondaryAxis string, rate decimal.Decimal) ([]SummaryRow, error) {
	var missing []string
	for _, axis := range []string{primaryAxis, secondaryAxis} {
		if !ledger.HasColumn(axis) {
			missing = append(missing, axis)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	groups := make(map[groupKey]*bucket)
	children := make(map[string][]string)
	for _, tx := range ledger.Transactions {
		key := groupKey{primary: tx.Text(primaryAxis), secondary: tx.Text(secondaryAxis)}
		if key.primary == "" || key.secondary == "" {
			continue
		}
		b, ok := groups[key]
		if !ok {
			b = &bucket{usd: decimal.Zero, gbp: decimal.Zero}
			groups[key] = b
			children[key.primary] = append(children[key.primary], key.secondary)
		}
		b.usd = b.usd.Add(tx.USD)
		b.gbp = b.gbp.Add(tx.GBP)
	}

	primaries := make([]string, 0, len(children))
	for p := range children {
		primaries = append(primaries, p)
	}
	sort.Strings(primaries)

	row := func(kind RowKind, primary, secondary string, usd, gbp decimal.Decimal) SummaryRow {
		return SummaryRow{
			Kind:          kind,
			PrimaryAxis:   primaryAxis,
			SecondaryAxis: secondaryAxis,
			Primary:       primary,
			Secondary:     secondary,
			USD:           usd,
			GBP:           gbp,
			Total:         fx.Combine(usd, gbp, rate),
		}
	}

	out := make([]SummaryRow, 0, len(groups)+len(primaries)+1)
	grandUSD, grandGBP := decimal.Zero, decimal.Zero
	for _, p := range primaries {
		secondaries := children[p]
		sort.Strings(secondaries)
		subUSD, subGBP := decimal.Zero, decimal.Zero
		for _, s := range secondaries {
			b := groups[groupKey{primary: p, secondary: s}]
			usd, gbp := fx.RoundSum(b.usd), fx.RoundSum(b.gbp)
			out = append(out, row(DetailRow, p, s, usd, gbp))
			subUSD, subGBP = subUSD.Add(usd), subGBP.Add(gbp)
		}
		out = append(out, row(SubtotalRow, p, SubtotalLabel, subUSD, subGBP))
		grandUSD, grandGBP = grandUSD.Add(subUSD), grandGBP.Add(subGBP)
	}
	out = append(out, row(GrandTotalRow, GrandTotalLabel, "", grandUSD, grandGBP))
	return out, nil
}
