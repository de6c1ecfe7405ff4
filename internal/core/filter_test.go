package core

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func rec(row int, name, email, product, status, price string, date Date, age int) InvoiceRecord {
	return InvoiceRecord{
		Row:           row,
		CustomerName:  name,
		CustomerEmail: email,
		Product:       product,
		Price:         decimal.RequireFromString(price),
		Status:        Status(status),
		DateCreated:   date,
		AgeDays:       age,
	}
}

func fixture() []InvoiceRecord {
	return []InvoiceRecord{
		rec(0, "Ada Lovelace", "ada@example.com", "Audit", "Paid", "100", NewDate(2025, 1, 10), 40),
		rec(1, "Bob", "bob@example.com", "Consulting", "Pending", "50", NewDate(2025, 2, 1), 18),
		rec(2, "Cleo", "cleo@corp.io", "Audit", "Overdue", "25", NewDate(2025, 2, 20), 0),
		rec(3, "Dan", "DAN@example.com", "audit", "paid", "10", Date{}, 0),
	}
}

func rows(rs []InvoiceRecord) []int {
	out := make([]int, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Row)
	}
	return out
}

func TestDefaultCriteriaSelectsEverything(t *testing.T) {
	all := fixture()
	got := Filter(all, DefaultCriteria(all))
	if !reflect.DeepEqual(got, all) {
		t.Fatalf("expected full table, got rows %v", rows(got))
	}
}

func TestDefaultCriteriaDateSpan(t *testing.T) {
	c := DefaultCriteria(fixture())
	if c.DateRange == nil || c.DateRange.From != NewDate(2025, 1, 10) || c.DateRange.To != NewDate(2025, 2, 20) {
		t.Fatalf("unexpected range %+v", c.DateRange)
	}
}

func TestFilter(t *testing.T) {
	all := fixture()
	base := DefaultCriteria(all)

	cases := []struct {
		name   string
		mutate func(*Criteria)
		want   []int
	}{
		{"status subset", func(c *Criteria) { c.Statuses = NewStringSet("Paid", "Pending") }, []int{0, 1}},
		{"status is case sensitive", func(c *Criteria) { c.Statuses = NewStringSet("paid") }, []int{3}},
		{"empty status set", func(c *Criteria) { c.Statuses = NewStringSet() }, []int{}},
		{"nil product set", func(c *Criteria) { c.Products = nil }, []int{}},
		{"product", func(c *Criteria) { c.Products = NewStringSet("Audit") }, []int{0, 2}},
		{"date range inclusive", func(c *Criteria) {
			c.DateRange = &DateRange{From: NewDate(2025, 2, 1), To: NewDate(2025, 2, 20)}
		}, []int{1, 2, 3}},
		{"reversed range is swapped", func(c *Criteria) {
			c.DateRange = &DateRange{From: NewDate(2025, 2, 20), To: NewDate(2025, 2, 1)}
		}, []int{1, 2, 3}},
		{"unknown date ignores range", func(c *Criteria) {
			c.DateRange = &DateRange{From: NewDate(2030, 1, 1), To: NewDate(2030, 1, 1)}
		}, []int{3}},
		{"search name case insensitive", func(c *Criteria) { c.Search = "LOVE" }, []int{0}},
		{"search email", func(c *Criteria) { c.Search = "corp.io" }, []int{2}},
		{"search upper email", func(c *Criteria) { c.Search = "dan@" }, []int{3}},
		{"search no match", func(c *Criteria) { c.Search = "zzz" }, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			got := Filter(all, c)
			if !reflect.DeepEqual(rows(got), tc.want) {
				t.Fatalf("expected rows %v, got %v", tc.want, rows(got))
			}
			again := Filter(got, c)
			if !reflect.DeepEqual(again, got) {
				t.Fatalf("filter not idempotent: %v then %v", rows(got), rows(again))
			}
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	all := fixture()
	reversed := []InvoiceRecord{all[3], all[2], all[1], all[0]}
	got := Filter(reversed, DefaultCriteria(all))
	if !reflect.DeepEqual(rows(got), []int{3, 2, 1, 0}) {
		t.Fatalf("order not preserved: %v", rows(got))
	}
}

func TestDistinctValues(t *testing.T) {
	all := fixture()
	if got := DistinctStatuses(all); !reflect.DeepEqual(got, []string{"Overdue", "Paid", "Pending", "paid"}) {
		t.Fatalf("unexpected statuses %v", got)
	}
	if got := DistinctProducts(all); !reflect.DeepEqual(got, []string{"Audit", "Consulting", "audit"}) {
		t.Fatalf("unexpected products %v", got)
	}
}
