package aggregation

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spendboard/spendboard/internal/fx"
)

const isoDate = "2006-01-02"

// maxSerialDate is 9999-12-31 in the 1900 date system.
const maxSerialDate = 2958465

// dayFirstLayouts are tried in order for string dates. Ambiguous values resolve day-month-year.
var dayFirstLayouts = []string{
	isoDate,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2/1/06",
	"02-01-06",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
}

// normalizeDate renders raw as YYYY-MM-DD. Values that cannot be read keep
// their original text and are tagged Defaulted.
func normalizeDate(raw string, serial, date1904 bool) (string, fx.Outcome) {
	value := strings.TrimSpace(raw)
	if serial {
		if n, err := strconv.ParseFloat(value, 64); err == nil && n > 0 && n <= maxSerialDate {
			if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
				return t.Format(isoDate), fx.Converted
			}
		}
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(isoDate), fx.Converted
		}
	}
	return raw, fx.Defaulted
}
