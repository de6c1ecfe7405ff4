package core

import (
	"sort"
	"strings"
)

// StringSet is an exact-match, case-sensitive set of values.
type StringSet map[string]struct{}

// NewStringSet builds a set from values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set.
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From Date
	To   Date
}

// Normalize swaps the bounds when they are reversed.
func (r DateRange) Normalize() DateRange {
	if r.To.Before(r.From.Time) {
		return DateRange{From: r.To, To: r.From}
	}
	return r
}

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// Criteria selects records from a table. An empty Statuses or Products set
// selects nothing. A nil DateRange does not restrict dates.
type Criteria struct {
	Statuses  StringSet
	Products  StringSet
	DateRange *DateRange
	Search    string
}

// DefaultCriteria selects every record of rows: all distinct statuses and
// products present, the full span of known dates and no search text.
func DefaultCriteria(rows []InvoiceRecord) Criteria {
	c := Criteria{
		Statuses: NewStringSet(),
		Products: NewStringSet(),
	}
	for _, r := range rows {
		c.Statuses[string(r.Status)] = struct{}{}
		c.Products[r.Product] = struct{}{}
		if !r.HasDate() {
			continue
		}
		if c.DateRange == nil {
			c.DateRange = &DateRange{From: r.DateCreated, To: r.DateCreated}
			continue
		}
		if r.DateCreated.Before(c.DateRange.From.Time) {
			c.DateRange.From = r.DateCreated
		}
		if r.DateCreated.After(c.DateRange.To.Time) {
			c.DateRange.To = r.DateCreated
		}
	}
	return c
}

// Match reports whether a single record passes the criteria.
func (c Criteria) Match(r InvoiceRecord) bool {
	if !c.Statuses.Contains(string(r.Status)) || !c.Products.Contains(r.Product) {
		return false
	}
	if c.DateRange != nil && r.HasDate() && !c.DateRange.Normalize().Contains(r.DateCreated) {
		return false
	}
	if q := strings.ToLower(c.Search); q != "" {
		if !strings.Contains(strings.ToLower(r.CustomerName), q) &&
			!strings.Contains(strings.ToLower(r.CustomerEmail), q) {
			return false
		}
	}
	return true
}

// Filter returns the records of rows matching c, in their original order.
// Filtering an already filtered view with the same criteria returns it
// unchanged.
func Filter(rows []InvoiceRecord, c Criteria) []InvoiceRecord {
	out := make([]InvoiceRecord, 0, len(rows))
	for _, r := range rows {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// DistinctStatuses returns the statuses present in rows, sorted.
func DistinctStatuses(rows []InvoiceRecord) []string {
	s := NewStringSet()
	for _, r := range rows {
		s[string(r.Status)] = struct{}{}
	}
	return s.Sorted()
}

// DistinctProducts returns the products present in rows, sorted.
func DistinctProducts(rows []InvoiceRecord) []string {
	s := NewStringSet()
	for _, r := range rows {
		s[r.Product] = struct{}{}
	}
	return s.Sorted()
}
