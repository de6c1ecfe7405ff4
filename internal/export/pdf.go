package export

import (
	"fmt"
	"io"

	"invoicedash/internal/core"

	"github.com/jung-kurt/gofpdf"
)

// Page geometry of the summary export, in points measured from the bottom
// edge of a Letter page.
const (
	PageHeight   = 792.0
	MarginLeft   = 30.0
	TitleY       = 750.0
	FirstLineY   = 730.0
	LineStep     = 15.0
	BottomMargin = 50.0

	SummaryTitle = "Invoice Summary Export"
)

// Line is one string placed on the summary export.
type Line struct {
	Page int // zero-based
	X, Y float64
	Text string
}

// SummaryLine formats one record as "name - product - $price - status".
func SummaryLine(r core.InvoiceRecord) string {
	return fmt.Sprintf("%s - %s - %s - %s", r.CustomerName, r.Product, priceLabel(r), r.Status)
}

// Layout places the title and one line per record. The title only appears
// on the first page. After each line the cursor moves down LineStep; once
// it drops below BottomMargin a new page starts at TitleY.
func Layout(rows []core.InvoiceRecord) []Line {
	lines := make([]Line, 0, len(rows)+1)
	lines = append(lines, Line{Page: 0, X: MarginLeft, Y: TitleY, Text: SummaryTitle})

	page, y := 0, FirstLineY
	for _, r := range rows {
		lines = append(lines, Line{Page: page, X: MarginLeft, Y: y, Text: SummaryLine(r)})
		y -= LineStep
		if y < BottomMargin {
			page++
			y = TitleY
		}
	}
	return lines
}

// PageCount returns the number of pages a layout occupies.
func PageCount(lines []Line) int {
	if len(lines) == 0 {
		return 0
	}
	return lines[len(lines)-1].Page + 1
}

// WritePDF renders rows as the paginated summary export.
func WritePDF(w io.Writer, rows []core.InvoiceRecord) error {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	current := -1
	for _, l := range Layout(rows) {
		for current < l.Page {
			pdf.AddPage()
			current++
		}
		// gofpdf measures from the top edge.
		pdf.Text(l.X, PageHeight-l.Y, tr(l.Text))
	}

	if err := pdf.Output(w); err != nil {
		return &core.ExportError{Format: "pdf", Err: err}
	}
	return nil
}
