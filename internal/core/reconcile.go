package core

import (
	"fmt"
	"strings"
)

// WriteKind is the kind of change a WriteCommand makes to a worksheet.
type WriteKind string

const (
	// WriteAppend adds one row after the existing ones.
	WriteAppend WriteKind = "append"
	// WriteReplace rewrites the header and every row of the worksheet.
	WriteReplace WriteKind = "replace"
)

// WriteCommand is the only way changes reach the record store.
type WriteCommand struct {
	Kind      WriteKind
	Worksheet string
	Header    []string   // set for WriteReplace
	Rows      [][]string // one row for WriteAppend, all rows for WriteReplace
}

// RowCount returns the number of data rows carried by the command.
func (c WriteCommand) RowCount() int { return len(c.Rows) }

// Validate checks the command is well formed.
func (c WriteCommand) Validate() error {
	if strings.TrimSpace(c.Worksheet) == "" {
		return ErrEmptyWorksheet
	}
	switch c.Kind {
	case WriteAppend:
		if len(c.Rows) != 1 {
			return fmt.Errorf("append carries %d rows, want 1", len(c.Rows))
		}
	case WriteReplace:
		if len(c.Header) != len(Columns) {
			return fmt.Errorf("replace header has %d columns, want %d", len(c.Header), len(Columns))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownWriteKind, c.Kind)
	}
	return nil
}

// NewAppendCommand validates a new-invoice form and builds the append that
// stores it, laid out like table's worksheet. A nil table means the
// worksheet uses Columns order. No duplicate check is made.
func NewAppendCommand(worksheet string, table *Table, form NewInvoice, today Date) (WriteCommand, InvoiceRecord, error) {
	rec, err := form.Validate(today)
	if err != nil {
		return WriteCommand{}, InvoiceRecord{}, err
	}
	cmd := WriteCommand{
		Kind:      WriteAppend,
		Worksheet: worksheet,
		Rows:      [][]string{table.Row(rec)},
	}
	if err := cmd.Validate(); err != nil {
		return WriteCommand{}, InvoiceRecord{}, err
	}
	return cmd, rec, nil
}

// RowEdit carries the edited cells of one row of the full table, as text.
type RowEdit struct {
	Row           int
	CustomerName  string
	CustomerEmail string
	Product       string
	Description   string
	Price         string
	InvoiceLink   string
	Status        string
	DateCreated   string
}

// EditOf returns the edit that leaves r unchanged.
func EditOf(r InvoiceRecord) RowEdit {
	return RowEdit{
		Row:           r.Row,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		Product:       r.Product,
		Description:   r.Description,
		Price:         r.PriceText(),
		InvoiceLink:   r.InvoiceLink,
		Status:        string(r.Status),
		DateCreated:   r.DateText(),
	}
}

// apply returns orig with the edit applied. Price and date cells left as
// they were keep their original text even if it never parsed.
func (e RowEdit) apply(orig InvoiceRecord, today Date) (InvoiceRecord, error) {
	rec := orig
	rec.CustomerName = strings.TrimSpace(e.CustomerName)
	rec.CustomerEmail = strings.TrimSpace(e.CustomerEmail)
	rec.Product = strings.TrimSpace(e.Product)
	rec.Description = strings.TrimSpace(e.Description)
	rec.InvoiceLink = strings.TrimSpace(e.InvoiceLink)
	rec.Status = Status(strings.TrimSpace(e.Status))

	if price := strings.TrimSpace(e.Price); price != orig.PriceText() {
		p, err := ParsePrice(price)
		if err != nil {
			return InvoiceRecord{}, fmt.Errorf("row %d: %w", e.Row, err)
		}
		rec.Price, rec.rawPrice = p, ""
	}

	if date := strings.TrimSpace(e.DateCreated); date != orig.DateText() {
		switch d, ok := ParseDate(date); {
		case date == "":
			rec.DateCreated, rec.rawDate = today, ""
		case !ok:
			return InvoiceRecord{}, fmt.Errorf("row %d: %w", e.Row, ErrInvalidDate)
		default:
			rec.DateCreated, rec.rawDate = d, ""
		}
		rec.AgeDays = rec.DateCreated.DaysSince(today)
	}
	return rec, nil
}

// ApplyEdits merges edits into the full table and returns the overwrite
// that persists the result, together with the merged records.
//
// The overwrite always carries every row of full. Edits address rows by
// their position in the full table, so saving from a filtered view keeps
// the rows the view did not show.
func ApplyEdits(worksheet string, full *Table, edits []RowEdit) (WriteCommand, []InvoiceRecord, error) {
	merged := append([]InvoiceRecord(nil), full.Records...)
	seen := make(map[int]bool, len(edits))
	for _, e := range edits {
		if e.Row < 0 || e.Row >= len(merged) {
			return WriteCommand{}, nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, e.Row)
		}
		if seen[e.Row] {
			return WriteCommand{}, nil, fmt.Errorf("%w: %d", ErrDuplicateRowEdit, e.Row)
		}
		seen[e.Row] = true

		rec, err := e.apply(merged[e.Row], full.LoadedAt)
		if err != nil {
			return WriteCommand{}, nil, err
		}
		merged[e.Row] = rec
	}

	rows := make([][]string, 0, len(merged))
	for _, r := range merged {
		rows = append(rows, r.Values())
	}
	cmd := WriteCommand{
		Kind:      WriteReplace,
		Worksheet: worksheet,
		Header:    full.Header(),
		Rows:      rows,
	}
	if err := cmd.Validate(); err != nil {
		return WriteCommand{}, nil, err
	}
	return cmd, merged, nil
}
