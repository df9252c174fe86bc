package aggregation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Sheet formats accepted by ReadSheet.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

var zipMagic = []byte("PK\x03\x04")

// Table is a raw header + rows grid read from an upload.
type Table struct {
	Headers []string
	Rows    [][]string
	// SerialDates marks cells that may hold spreadsheet serial dates (xlsx sources).
	SerialDates bool
	Date1904    bool
}

// SupportedExtension reports whether a file name carries an extension ReadSheet understands.
func SupportedExtension(name string) bool {
	return formatForName(name) != ""
}

func formatForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	default:
		return ""
	}
}

// ReadSheet parses data into a Table. The format comes from the file name when it
// has a known extension and is sniffed otherwise.
func ReadSheet(data []byte, name string) (Table, error) {
	format := formatForName(name)
	if format == "" {
		format = FormatCSV
		if bytes.HasPrefix(data, zipMagic) {
			format = FormatXLSX
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, &UnsupportedFormatError{Format: format, Err: errors.New("empty file")}
	}
	if format == FormatXLSX {
		return readXLSX(data)
	}
	return readCSV(data)
}

func readXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, &UnsupportedFormatError{Format: FormatXLSX, Err: err}
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Table{}, &UnsupportedFormatError{Format: FormatXLSX, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, &UnsupportedFormatError{Format: FormatXLSX, Err: err}
	}
	table := splitHeader(rows)
	table.SerialDates = true
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		table.Date1904 = *props.Date1904
	}
	return table, nil
}

func readCSV(data []byte) (Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return Table{}, &UnsupportedFormatError{Format: FormatCSV, Err: errors.New("content is not text")}
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, &UnsupportedFormatError{Format: FormatCSV, Err: err}
	}
	return splitHeader(rows), nil
}

// splitHeader treats the first row as the header; a sheet without rows yields an empty table.
func splitHeader(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}
	return Table{Headers: rows[0], Rows: rows[1:]}
}
