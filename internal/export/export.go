// Package export renders invoice views as downloadable documents.
package export

import (
	"io"
	"sort"

	"invoicedash/internal/core"
)

// Format describes one download format.
type Format struct {
	Name        string
	ContentType string
	Filename    string
	Write       func(w io.Writer, rows []core.InvoiceRecord) error
}

var formats = map[string]Format{
	"csv":  {Name: "csv", ContentType: "text/csv; charset=utf-8", Filename: "invoices.csv", Write: WriteCSV},
	"pdf":  {Name: "pdf", ContentType: "application/pdf", Filename: "invoices.pdf", Write: WritePDF},
	"xlsx": {Name: "xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Filename: "invoices.xlsx", Write: WriteXLSX},
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, bool) {
	f, ok := formats[name]
	return f, ok
}

// Names returns the registered format names, sorted.
func Names() []string {
	out := make([]string, 0, len(formats))
	for n := range formats {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// priceLabel renders a price for documents. Cells that never parsed are
// shown as written.
func priceLabel(r core.InvoiceRecord) string {
	if !r.HasPrice() {
		return "$" + r.PriceText()
	}
	return "$" + r.Price.StringFixed(2)
}
