package http

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"invoicedash/internal/core"
	"invoicedash/internal/services"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, sanitizeInput(v))
	}
	return out
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templateFuncs are available to every page and partial.
var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return core.FormatPrice(d) },
	"price": func(r core.InvoiceRecord) string {
		if !r.HasPrice() {
			return r.PriceText()
		}
		return core.FormatPrice(r.Price)
	},
	"sheetRow":  func(row int) int { return row + 2 },
	"field":     editField,
	"downloads": services.Downloads,
	"has": func(set core.StringSet, v string) bool {
		return set.Contains(v)
	},
	"age": func(r core.InvoiceRecord) string {
		if !r.HasDate() {
			return "N/A"
		}
		return strconv.Itoa(r.AgeDays) + "d"
	},
	"bucket": func(r core.InvoiceRecord) string {
		if !r.HasDate() {
			return ""
		}
		return string(core.Classify(r.AgeDays))
	},
	"statusClass": func(s core.Status) string {
		return "status-" + strings.ToLower(strings.ReplaceAll(string(s), " ", "-"))
	},
	"dateValue": func(r *core.DateRange, from bool) string {
		if r == nil {
			return ""
		}
		if from {
			return r.From.String()
		}
		return r.To.String()
	},
}
