package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MonthTotal is the revenue of one calendar month.
type MonthTotal struct {
	Month string // YYYY-MM
	Total decimal.Decimal
}

// StatusTotal is the revenue of one status.
type StatusTotal struct {
	Status Status
	Total  decimal.Decimal
}

// Summary holds the headline metrics of a view.
type Summary struct {
	Count       int
	Revenue     decimal.Decimal
	ByStatus    []StatusTotal // well-known statuses first, then others sorted
	UnpaidCount int
	meanAge     float64
	agedCount   int
}

// MeanAge returns the average age in days over records with a known date.
// ok is false when there is none.
func (s Summary) MeanAge() (days float64, ok bool) {
	return s.meanAge, s.agedCount > 0
}

// MeanAgeLabel renders the mean age for display, "N/A" when undefined.
func (s Summary) MeanAgeLabel() string {
	if days, ok := s.MeanAge(); ok {
		return fmt.Sprintf("%.1f days", days)
	}
	return "N/A"
}

// StatusRevenue returns the subtotal for st, zero when absent.
func (s Summary) StatusRevenue(st Status) decimal.Decimal {
	for _, t := range s.ByStatus {
		if t.Status == st {
			return t.Total
		}
	}
	return decimal.Zero
}

// Summarize computes the headline metrics of rows.
func Summarize(rows []InvoiceRecord) Summary {
	s := Summary{Count: len(rows), Revenue: decimal.Zero}

	totals := make(map[Status]decimal.Decimal)
	for _, st := range KnownStatuses {
		totals[st] = decimal.Zero
	}
	ageSum := 0
	for _, r := range rows {
		s.Revenue = s.Revenue.Add(r.Price)
		if cur, ok := totals[r.Status]; ok {
			totals[r.Status] = cur.Add(r.Price)
		} else {
			totals[r.Status] = r.Price
		}
		if !r.IsPaid() {
			s.UnpaidCount++
		}
		if r.HasDate() {
			ageSum += r.AgeDays
			s.agedCount++
		}
	}
	if s.agedCount > 0 {
		s.meanAge = float64(ageSum) / float64(s.agedCount)
	}

	for _, st := range KnownStatuses {
		s.ByStatus = append(s.ByStatus, StatusTotal{Status: st, Total: totals[st]})
		delete(totals, st)
	}
	others := make([]string, 0, len(totals))
	for st := range totals {
		others = append(others, string(st))
	}
	sort.Strings(others)
	for _, st := range others {
		s.ByStatus = append(s.ByStatus, StatusTotal{Status: Status(st), Total: totals[Status(st)]})
	}
	return s
}

// MonthlyRevenue sums prices per calendar month of creation, ascending.
// Records without a known date are skipped.
func MonthlyRevenue(rows []InvoiceRecord) []MonthTotal {
	byMonth := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if !r.HasDate() {
			continue
		}
		label := r.DateCreated.MonthLabel()
		if cur, ok := byMonth[label]; ok {
			byMonth[label] = cur.Add(r.Price)
		} else {
			byMonth[label] = r.Price
		}
	}
	out := make([]MonthTotal, 0, len(byMonth))
	for m, total := range byMonth {
		out = append(out, MonthTotal{Month: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
