package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarizeScenario(t *testing.T) {
	all := []InvoiceRecord{
		rec(0, "A", "a@x", "P", "Paid", "100", NewDate(2025, 1, 1), 10),
		rec(1, "B", "b@x", "P", "Pending", "50", NewDate(2025, 1, 2), 20),
		rec(2, "C", "c@x", "P", "Overdue", "25", NewDate(2025, 1, 3), 30),
	}
	c := DefaultCriteria(all)
	c.Statuses = NewStringSet("Paid", "Pending")

	s := Summarize(Filter(all, c))
	if s.Count != 2 {
		t.Fatalf("expected 2 invoices, got %d", s.Count)
	}
	if !s.Revenue.Equal(dec("150")) {
		t.Fatalf("expected revenue 150, got %s", s.Revenue)
	}
	if s.UnpaidCount != 1 {
		t.Fatalf("expected 1 unpaid, got %d", s.UnpaidCount)
	}
	if !s.StatusRevenue(StatusPaid).Equal(dec("100")) || !s.StatusRevenue(StatusPending).Equal(dec("50")) {
		t.Fatalf("unexpected status subtotals %+v", s.ByStatus)
	}
	if !s.StatusRevenue(StatusOverdue).IsZero() {
		t.Fatalf("filtered-out overdue row counted: %s", s.StatusRevenue(StatusOverdue))
	}
	if got := s.MeanAgeLabel(); got != "15.0 days" {
		t.Fatalf("expected 15.0 days, got %q", got)
	}
}

func TestSummarizeOtherStatusesAndEmpty(t *testing.T) {
	s := Summarize([]InvoiceRecord{
		rec(0, "A", "a@x", "P", "Void", "5", Date{}, 0),
		rec(1, "B", "b@x", "P", "Draft", "7", Date{}, 0),
	})
	want := []Status{StatusPending, StatusPaid, StatusOverdue, "Draft", "Void"}
	if len(s.ByStatus) != len(want) {
		t.Fatalf("unexpected statuses %+v", s.ByStatus)
	}
	for i, st := range want {
		if s.ByStatus[i].Status != st {
			t.Fatalf("position %d: expected %s, got %s", i, st, s.ByStatus[i].Status)
		}
	}
	if s.UnpaidCount != 2 {
		t.Fatalf("expected 2 unpaid, got %d", s.UnpaidCount)
	}
	if got := s.MeanAgeLabel(); got != "N/A" {
		t.Fatalf("expected N/A without dated rows, got %q", got)
	}

	empty := Summarize(nil)
	if empty.Count != 0 || !empty.Revenue.IsZero() || empty.MeanAgeLabel() != "N/A" {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
}

func TestMonthlyRevenue(t *testing.T) {
	all := []InvoiceRecord{
		rec(0, "A", "a@x", "P", "Paid", "10", NewDate(2025, 3, 5), 0),
		rec(1, "B", "b@x", "P", "Paid", "20", NewDate(2024, 12, 31), 0),
		rec(2, "C", "c@x", "P", "Paid", "30", NewDate(2025, 3, 28), 0),
		rec(3, "D", "d@x", "P", "Paid", "40", Date{}, 0),
	}
	got := MonthlyRevenue(all)
	want := []MonthTotal{{"2024-12", dec("20")}, {"2025-03", dec("40")}}
	if len(got) != len(want) {
		t.Fatalf("expected %d months, got %+v", len(want), got)
	}
	sum := decimal.Zero
	for i := range want {
		if got[i].Month != want[i].Month || !got[i].Total.Equal(want[i].Total) {
			t.Fatalf("month %d: expected %+v, got %+v", i, want[i], got[i])
		}
		sum = sum.Add(got[i].Total)
	}

	dated := decimal.Zero
	for _, r := range all {
		if r.HasDate() {
			dated = dated.Add(r.Price)
		}
	}
	if !sum.Equal(dated) {
		t.Fatalf("monthly totals %s do not sum to dated revenue %s", sum, dated)
	}

	if got := MonthlyRevenue(nil); len(got) != 0 {
		t.Fatalf("expected no months, got %+v", got)
	}
}
