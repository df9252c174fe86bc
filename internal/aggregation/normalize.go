package aggregation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/fx"
)

// missingMarkers are cell values read as missing, mirroring common spreadsheet NA spellings.
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var canonicalColumns = []string{
	ColumnTeam, ColumnCategory, ColumnAmount, ColumnCurrency,
	ColumnDate, ColumnDescription, ColumnExchangeRate,
}

// textColumns are trimmed and never typed as numbers.
var textColumns = map[string]bool{
	ColumnTeam: true, ColumnCategory: true, ColumnCurrency: true, ColumnDescription: true,
}

func isMissing(raw string) bool {
	_, ok := missingMarkers[raw]
	return ok
}

// columnIndex maps canonical header names to their position in a raw row.
type columnIndex struct {
	names []string
	pos   map[string]int
}

func indexColumns(headers []string) columnIndex {
	idx := columnIndex{names: make([]string, len(headers)), pos: make(map[string]int, len(headers))}
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := canonicalName(strings.TrimSpace(h), i)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		idx.names[i] = name
		if _, dup := idx.pos[name]; !dup {
			idx.pos[name] = i
		}
	}
	return idx
}

func canonicalName(header string, i int) string {
	if header == "" {
		return fmt.Sprintf("Unnamed: %d", i)
	}
	for _, c := range canonicalColumns {
		if strings.EqualFold(header, c) {
			return c
		}
	}
	return header
}

func (c columnIndex) has(name string) bool {
	_, ok := c.pos[name]
	return ok
}

func (c columnIndex) cell(row []string, name string) (string, bool) {
	i, ok := c.pos[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// Normalize validates a raw table and cleans it into a canonical ledger. The
// returned rate governs the whole run.
func Normalize(table Table, policy fx.Policy, override *decimal.Decimal) (Ledger, fx.Rate, error) {
	cols := indexColumns(table.Headers)

	var missing []string
	for _, c := range RequiredColumns {
		if !cols.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return Ledger{}, fx.Rate{}, &MalformedInputError{Missing: missing}
	}

	rate := policy.Resolve(firstRate(table.Rows, cols), override)

	ledger := Ledger{
		Transactions: make([]Transaction, 0, len(table.Rows)),
		Stats:        Stats{Rows: len(table.Rows)},
	}
	for _, name := range cols.names {
		if isDerivedKey(name) {
			continue
		}
		ledger.Columns = append(ledger.Columns, name)
	}

	for _, row := range table.Rows {
		tx, ok := normalizeRow(row, cols, table, &ledger.Stats)
		if !ok {
			ledger.Stats.Dropped++
			continue
		}
		ledger.Transactions = append(ledger.Transactions, tx)
	}
	return ledger, rate, nil
}

func firstRate(rows [][]string, cols columnIndex) string {
	for _, row := range rows {
		raw, ok := cols.cell(row, ColumnExchangeRate)
		if !ok {
			continue
		}
		if raw = strings.TrimSpace(raw); !isMissing(raw) {
			return raw
		}
	}
	return ""
}

func isDerivedKey(name string) bool {
	return strings.EqualFold(name, keyPrimary) || strings.EqualFold(name, keySecondary)
}

func normalizeRow(row []string, cols columnIndex, table Table, stats *Stats) (Transaction, bool) {
	var tx Transaction
	tx.fields = make([]Field, 0, len(cols.names))
	for i, name := range cols.names {
		if isDerivedKey(name) {
			continue
		}
		raw := ""
		if i < len(row) {
			raw = row[i]
		}
		tx.fields = append(tx.fields, Field{Name: name, Value: normalizeCell(name, raw, table, stats)})
	}

	tx.Team = tx.fieldText(ColumnTeam)
	tx.Category = tx.fieldText(ColumnCategory)
	if tx.Team == "" || tx.Category == "" {
		return Transaction{}, false
	}
	tx.Currency = tx.fieldText(ColumnCurrency)

	rawAmount, _ := cols.cell(row, ColumnAmount)
	amount := fx.ParseAmount(rawAmount)
	if amount.Outcome == fx.Converted {
		tx.Amount = decimal.NewNullDecimal(amount.Value)
	}
	tx.USD, tx.GBP = fx.Bucket(tx.Currency, amount.Value)
	if amount.Outcome == fx.Defaulted && matchesPair(tx.Currency) {
		stats.DefaultedAmounts++
	}
	return tx, true
}

func matchesPair(currency string) bool {
	c := strings.TrimSpace(currency)
	return c == fx.PrimaryCurrency || c == fx.SecondaryCurrency
}

func normalizeCell(name, raw string, table Table, stats *Stats) any {
	value := strings.TrimSpace(raw)
	if isMissing(value) {
		return nil
	}
	switch {
	case name == ColumnDate:
		date, outcome := normalizeDate(raw, table.SerialDates, table.Date1904)
		if outcome == fx.Defaulted {
			stats.UnparsedDates++
		}
		return date
	case textColumns[name]:
		return value
	case name == ColumnAmount:
		if amt := fx.ParseAmount(value); amt.Outcome == fx.Converted {
			return amt.Value.InexactFloat64()
		}
		return value
	default:
		return cellValue(value)
	}
}
