package aggregation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/fx"
)

// Canonical column names. Headers are matched case-insensitively and renamed to these.
const (
	ColumnTeam         = "Team"
	ColumnCategory     = "Category"
	ColumnAmount       = "Amount"
	ColumnCurrency     = "Currency"
	ColumnDate         = "Date"
	ColumnDescription  = "Description"
	ColumnExchangeRate = "Exchange Rate"
)

// RequiredColumns must be present in every upload.
var RequiredColumns = []string{ColumnTeam, ColumnCategory, ColumnAmount, ColumnCurrency}

// Keys of the derived per-currency amounts in raw transaction payloads.
var (
	keyPrimary   = fx.PrimaryCurrency
	keySecondary = fx.SecondaryCurrency
)

// Field is one column value of a canonical record. Value is a string, a float64 or nil.
type Field struct {
	Name  string
	Value any
}

// Transaction is a cleaned ledger row ready for grouping.
type Transaction struct {
	Team     string
	Category string
	Currency string
	// Amount is invalid when the cell was missing or not numeric.
	Amount decimal.NullDecimal
	// USD and GBP are the amount bucketed by currency.
	USD decimal.Decimal
	GBP decimal.Decimal

	fields []Field
}

// Value returns a column value and whether the column exists on the record.
func (t Transaction) Value(column string) (any, bool) {
	for _, f := range t.fields {
		if f.Name == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Text returns a column value as a string. Missing values yield "".
func (t Transaction) Text(column string) string {
	switch column {
	case ColumnTeam:
		return t.Team
	case ColumnCategory:
		return t.Category
	case ColumnCurrency:
		return t.Currency
	}
	return t.fieldText(column)
}

// fieldText reads column from the source fields, bypassing the cached struct fields.
func (t Transaction) fieldText(column string) string {
	v, _ := t.Value(column)
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON writes the source columns in order followed by the currency buckets.
func (t Transaction) MarshalJSON() ([]byte, error) {
	fields := make([]Field, 0, len(t.fields)+2)
	fields = append(fields, t.fields...)
	fields = append(fields,
		Field{Name: keyPrimary, Value: t.USD.InexactFloat64()},
		Field{Name: keySecondary, Value: t.GBP.InexactFloat64()},
	)
	return encodeObject(fields)
}

// UnmarshalJSON restores a record written by MarshalJSON, keeping column order.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*t = Transaction{}
	for _, f := range fields {
		switch f.Name {
		case keyPrimary:
			t.USD = decimalFromJSON(f.Value)
			continue
		case keySecondary:
			t.GBP = decimalFromJSON(f.Value)
			continue
		case ColumnTeam:
			t.Team, _ = f.Value.(string)
		case ColumnCategory:
			t.Category, _ = f.Value.(string)
		case ColumnCurrency:
			t.Currency, _ = f.Value.(string)
		case ColumnAmount:
			if n, ok := f.Value.(float64); ok {
				t.Amount = decimal.NewNullDecimal(decimal.NewFromFloat(n))
			}
		}
		t.fields = append(t.fields, f)
	}
	return nil
}

// Stats counts the row-level anomalies recovered during normalization.
type Stats struct {
	Rows             int
	Dropped          int
	DefaultedAmounts int
	UnparsedDates    int
}

// Ledger is the canonical table produced by Normalize.
type Ledger struct {
	Columns      []string
	Transactions []Transaction
	Stats        Stats
}

// HasColumn reports whether column is part of the ledger schema.
func (l Ledger) HasColumn(column string) bool {
	for _, c := range l.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func decimalFromJSON(v any) decimal.Decimal {
	if n, ok := v.(float64); ok {
		return decimal.NewFromFloat(n)
	}
	return decimal.Zero
}

// cellValue types a passthrough cell: finite numbers become float64, the rest stay text.
func cellValue(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return n
	}
	return raw
}

func encodeObject(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeObject(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected JSON object")
	}
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode %q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}
