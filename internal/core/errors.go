package core

import (
	"fmt"
	"strings"
)

// SchemaError reports a worksheet header that cannot be loaded.
type SchemaError struct {
	Missing   []string
	Duplicate []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	return "schema error: " + strings.Join(parts, "; ")
}

// ParseError records a cell that could not be parsed. It is never fatal:
// the row stays in the table with the field treated as unknown.
type ParseError struct {
	Row    int // worksheet row number, header is row 1
	Column string
	Value  string
	Err    error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d column %q: cannot parse %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// StoreWriteError wraps a failed append or full overwrite.
type StoreWriteError struct {
	Kind      WriteKind
	Worksheet string
	Err       error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s to worksheet %q failed: %v", e.Kind, e.Worksheet, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// TransportError wraps a failed email send to one recipient.
type TransportError struct {
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExportError wraps a failed document generation.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
