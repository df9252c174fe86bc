package aggregation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is matched by every error caused by the uploaded data itself.
var ErrInvalidInput = errors.New("aggregation: invalid input")

// UnsupportedFormatError reports a byte stream that is not tabular data.
type UnsupportedFormatError struct {
	Format string
	Err    error
}

func (e *UnsupportedFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unsupported file format %q", e.Format)
	}
	return fmt.Sprintf("unable to read %s data: %v", e.Format, e.Err)
}

func (e *UnsupportedFormatError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// MalformedInputError reports mandatory columns absent from the sheet.
type MalformedInputError struct {
	Missing []string
}

func (e *MalformedInputError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *MalformedInputError) Unwrap() error { return ErrInvalidInput }

// SchemaError reports grouping axes that are not columns of the canonical ledger.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "unknown grouping columns: " + strings.Join(e.Missing, ", ")
}

func (e *SchemaError) Unwrap() error { return ErrInvalidInput }
