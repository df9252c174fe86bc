package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/spendboard/spendboard/internal/aggregation"
)

var (
	teams      = []string{"Platform", "Growth", "Design", "Finance", "Support"}
	categories = []string{"Software", "Travel", "Hardware", "Contractors", "Training", "Meals"}
	vendors    = []string{"Acme Cloud", "Northwind", "Globex", "Initech", "Umbrella", "Hooli"}
)

type options struct {
	out   string
	rows  int
	seed  uint64
	rate  string
	month string
	blank int
}

func main() {
	var opts options
	flag.StringVar(&opts.out, "out", "sample_ledger.xlsx", "workbook to write")
	flag.IntVar(&opts.rows, "rows", 250, "number of ledger rows")
	flag.Uint64Var(&opts.seed, "seed", 42, "random seed, same seed gives the same workbook")
	flag.StringVar(&opts.rate, "rate", "1.27", "value of the Exchange Rate column, empty to omit the column")
	flag.StringVar(&opts.month, "month", time.Now().Format("2006-01"), "month the transaction dates fall in (YYYY-MM)")
	flag.IntVar(&opts.blank, "blank-every", 40, "blank the team of every Nth row, 0 to disable")
	flag.Parse()

	fmt.Println("→ Generating ledger rows...")
	rows, err := generate(opts)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	fmt.Println("→ Writing workbook...")
	if err := writeWorkbook(opts.out, header(opts), rows); err != nil {
		log.Fatalf("write workbook: %v", err)
	}
	fmt.Printf("✓ Wrote %d rows to %s\n", len(rows), opts.out)
}

func header(opts options) []any {
	cols := []any{
		aggregation.ColumnDate,
		aggregation.ColumnTeam,
		aggregation.ColumnCategory,
		aggregation.ColumnDescription,
		aggregation.ColumnAmount,
		aggregation.ColumnCurrency,
	}
	if opts.rate != "" {
		cols = append(cols, aggregation.ColumnExchangeRate)
	}
	return cols
}

func generate(opts options) ([][]any, error) {
	if opts.rows <= 0 {
		return nil, fmt.Errorf("rows must be positive, got %d", opts.rows)
	}
	month, err := time.Parse("2006-01", opts.month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", opts.month, err)
	}
	var rate decimal.Decimal
	if opts.rate != "" {
		if rate, err = decimal.NewFromString(opts.rate); err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid rate %q", opts.rate)
		}
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	days := month.AddDate(0, 1, -1).Day()
	rows := make([][]any, 0, opts.rows)
	for i := 0; i < opts.rows; i++ {
		team := teams[rng.IntN(len(teams))]
		if opts.blank > 0 && (i+1)%opts.blank == 0 {
			team = ""
		}
		currency := "USD"
		if rng.IntN(3) == 0 {
			currency = "GBP"
		}
		cents := int64(500 + rng.IntN(250000))
		row := []any{
			month.AddDate(0, 0, rng.IntN(days)).Format("02/01/2006"),
			team,
			categories[rng.IntN(len(categories))],
			vendors[rng.IntN(len(vendors))],
			decimal.New(cents, -2).InexactFloat64(),
			currency,
		}
		if opts.rate != "" {
			cell := ""
			if i == 0 {
				cell = rate.String()
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeWorkbook(path string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
