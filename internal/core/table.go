package core

import (
	"fmt"
	"strings"
	"time"
)

// RawTable is a worksheet as read from the store: the header row and the
// data rows below it, all as text. Rows may be shorter than the header.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Records returns each row keyed by its header cell. When the header holds
// duplicate names the last one wins; use Load to detect that case.
func (rt RawTable) Records() []map[string]string {
	out := make([]map[string]string, 0, len(rt.Rows))
	for _, row := range rt.Rows {
		rec := make(map[string]string, len(rt.Header))
		for i, h := range rt.Header {
			rec[h] = cell(row, i)
		}
		out = append(out, rec)
	}
	return out
}

// Table is the in-memory invoice table of one worksheet.
type Table struct {
	Records  []InvoiceRecord
	Issues   []ParseError
	LoadedAt Date

	// layout holds the header position of each of Columns when the
	// worksheet orders them differently. nil means Columns order.
	layout []int
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// Header returns the column header written on a full overwrite.
func (t *Table) Header() []string {
	return append([]string(nil), Columns...)
}

// Row lays r out in the column order of the worksheet the table was loaded
// from. Cells under columns the table does not know stay empty.
func (t *Table) Row(r InvoiceRecord) []string {
	values := r.Values()
	if t == nil || t.layout == nil {
		return values
	}
	width := 0
	for _, pos := range t.layout {
		width = max(width, pos+1)
	}
	row := make([]string, width)
	for i, pos := range t.layout {
		row[pos] = values[i]
	}
	return row
}

// Rewritten returns a copy of t holding records, in the column order a full
// overwrite leaves the worksheet in.
func (t *Table) Rewritten(records []InvoiceRecord) *Table {
	next := *t
	next.Records = records
	next.layout = nil
	return &next
}

// Record returns the record at the given row position.
func (t *Table) Record(row int) (InvoiceRecord, error) {
	if row < 0 || row >= len(t.Records) {
		return InvoiceRecord{}, fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	return t.Records[row], nil
}

// Filter applies c to the full table.
func (t *Table) Filter(c Criteria) []InvoiceRecord {
	return Filter(t.Records, c)
}

// Load validates the header of raw and projects every row onto the fixed
// invoice columns. Ages are computed relative to now.
func Load(raw RawTable, now time.Time) (*Table, error) {
	idx, err := resolveColumns(raw.Header)
	if err != nil {
		return nil, err
	}

	today := DateOf(now)
	t := &Table{
		Records:  make([]InvoiceRecord, 0, len(raw.Rows)),
		LoadedAt: today,
		layout:   layoutOf(idx),
	}
	for i, row := range raw.Rows {
		if isBlankRow(row) {
			continue
		}
		get := func(col string) string { return strings.TrimSpace(cell(row, idx[col])) }

		rec := InvoiceRecord{
			Row:           len(t.Records),
			CustomerName:  get(ColCustomerName),
			CustomerEmail: get(ColCustomerEmail),
			Product:       get(ColProduct),
			Description:   get(ColDescription),
			InvoiceLink:   get(ColInvoiceLink),
			Status:        Status(get(ColStatus)),
		}

		priceText := get(ColPrice)
		if price, err := ParsePrice(priceText); err != nil {
			rec.rawPrice = priceText
			t.Issues = append(t.Issues, ParseError{Row: i + 2, Column: ColPrice, Value: priceText, Err: err})
		} else {
			rec.Price = price
		}

		dateText := get(ColDateCreated)
		switch d, ok := ParseDate(dateText); {
		case dateText == "":
			rec.DateCreated = today
		case !ok:
			rec.rawDate = dateText
			t.Issues = append(t.Issues, ParseError{Row: i + 2, Column: ColDateCreated, Value: dateText, Err: ErrInvalidDate})
		default:
			rec.DateCreated = d
		}
		if rec.HasDate() {
			rec.AgeDays = rec.DateCreated.DaysSince(today)
		}

		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// resolveColumns maps each required column to its index in header.
func resolveColumns(header []string) (map[string]int, error) {
	positions := make(map[string][]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		positions[key] = append(positions[key], i)
	}

	idx := make(map[string]int, len(Columns))
	var schemaErr SchemaError
	for _, col := range Columns {
		found := positions[normalizeHeader(col)]
		switch len(found) {
		case 0:
			schemaErr.Missing = append(schemaErr.Missing, col)
		case 1:
			idx[col] = found[0]
		default:
			schemaErr.Duplicate = append(schemaErr.Duplicate, col)
		}
	}
	if len(schemaErr.Missing) > 0 || len(schemaErr.Duplicate) > 0 {
		return nil, &schemaErr
	}
	return idx, nil
}

// layoutOf returns the header position of each of Columns, or nil when
// they sit in Columns order from the first column on.
func layoutOf(idx map[string]int) []int {
	layout := make([]int, len(Columns))
	ordered := true
	for i, col := range Columns {
		layout[i] = idx[col]
		ordered = ordered && layout[i] == i
	}
	if ordered {
		return nil
	}
	return layout
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate accepts the date layouts commonly produced by spreadsheets.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	return Date{}, false
}
