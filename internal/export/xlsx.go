package export

import (
	"io"

	"invoicedash/internal/core"

	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the name of the worksheet in exported workbooks.
const XLSXSheet = "Invoices"

// WriteXLSX writes rows as a single-sheet workbook. Parsed prices and dates
// become numeric and date cells; cells that never parsed keep their text.
func WriteXLSX(w io.Writer, rows []core.InvoiceRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return &core.ExportError{Format: "xlsx", Err: err}
	}

	dateStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 14})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})

	sw, err := f.NewStreamWriter(XLSXSheet)
	if err != nil {
		return &core.ExportError{Format: "xlsx", Err: err}
	}

	// Widths must be set before the first row is streamed.
	widths := []struct {
		from, to int
		width    float64
	}{
		{1, 2, 26}, // name, email
		{3, 3, 16}, // product
		{4, 4, 36}, // description
		{5, 5, 12}, // price
		{6, 6, 36}, // link
		{7, 8, 14}, // status, date
	}
	for _, cw := range widths {
		if err := sw.SetColWidth(cw.from, cw.to, cw.width); err != nil {
			return &core.ExportError{Format: "xlsx", Err: err}
		}
	}

	header := make([]any, len(core.Columns))
	for i, c := range core.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return &core.ExportError{Format: "xlsx", Err: err}
	}

	for i, r := range rows {
		var price any = r.PriceText()
		if r.HasPrice() {
			price = excelize.Cell{StyleID: moneyStyle, Value: r.Price.Round(2).InexactFloat64()}
		}
		var date any = r.DateText()
		if r.HasDate() {
			date = excelize.Cell{StyleID: dateStyle, Value: r.DateCreated.Time}
		}
		row := []any{
			r.CustomerName,
			r.CustomerEmail,
			r.Product,
			r.Description,
			price,
			r.InvoiceLink,
			string(r.Status),
			date,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return &core.ExportError{Format: "xlsx", Err: err}
		}
	}

	if err := sw.Flush(); err != nil {
		return &core.ExportError{Format: "xlsx", Err: err}
	}
	if _, err := f.WriteTo(w); err != nil {
		return &core.ExportError{Format: "xlsx", Err: err}
	}
	return nil
}
