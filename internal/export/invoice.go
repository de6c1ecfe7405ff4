package export

import (
	"fmt"
	"io"

	"invoicedash/internal/core"

	"github.com/jung-kurt/gofpdf"
)

// WriteInvoicePDF renders a single invoice with every field.
func WriteInvoicePDF(w io.Writer, r core.InvoiceRecord) error {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr(fmt.Sprintf("Invoice - %s", r.CustomerName)))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(40, 8, "Bill To:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(120, 6, tr(r.CustomerName))
	pdf.Ln(6)
	pdf.Cell(120, 6, tr(r.CustomerEmail))
	pdf.Ln(12)

	date := r.DateText()
	if date == "" {
		date = "unknown"
	}
	fields := [][2]string{
		{"Product", r.Product},
		{"Description", r.Description},
		{"Status", string(r.Status)},
		{"Date Created", date},
		{"Invoice Link", r.InvoiceLink},
	}
	for _, f := range fields {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(40, 7, f[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(150, 7, tr(f[1]), "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(150, 10, "Total:")
	pdf.CellFormat(40, 10, tr(priceLabel(r)), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return &core.ExportError{Format: "pdf", Err: err}
	}
	return nil
}
