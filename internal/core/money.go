// Package core provides the invoice domain: the table model, filtering,
// aggregation and the write commands that reconcile edits with the store.
//
// This file contains price parsing and formatting. Prices are kept as
// decimals in a single implied currency.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a price cell to a non-negative decimal.
//
// It tolerates the formatting spreadsheets usually apply: a leading currency
// symbol, thousands separators and surrounding whitespace.
//
// Examples:
//
//	ParsePrice("100")       -> 100, nil
//	ParsePrice("$1,250.50") -> 1250.50, nil
//	ParsePrice("-3")        -> 0, ErrNegativePrice
//	ParsePrice("abc")       -> 0, ErrInvalidPrice
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidPrice
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return d, nil
}

// FormatPrice renders a decimal as "$1,234.50".
func FormatPrice(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
