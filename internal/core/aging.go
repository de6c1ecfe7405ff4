// This file implements invoice aging as a set of bucket rules. Each bucket
// owns the predicate that decides membership by age in days, and the
// registry fixes the order buckets are reported in.

package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bucket names an aging range.
type Bucket string

const (
	BucketFresh   Bucket = "fresh"
	BucketWarn1   Bucket = "warn1"
	BucketWarn2   Bucket = "warn2"
	BucketOverdue Bucket = "overdue"
)

// BucketRule decides whether an invoice of a given age belongs to a bucket.
type BucketRule interface {
	Contains(ageDays int) bool
	// Label is the human description shown next to the bucket count.
	Label() string
}

// FreshRule holds invoices up to a week old, future-dated ones included.
type FreshRule struct{}

func (FreshRule) Contains(age int) bool { return age <= 7 }
func (FreshRule) Label() string         { return "0–7 days" }

// Warn1Rule holds invoices older than a week, up to three weeks.
type Warn1Rule struct{}

func (Warn1Rule) Contains(age int) bool { return age > 7 && age <= 21 }
func (Warn1Rule) Label() string         { return "7–21 days" }

// Warn2Rule holds invoices older than three weeks, up to thirty days.
type Warn2Rule struct{}

func (Warn2Rule) Contains(age int) bool { return age > 21 && age <= 30 }
func (Warn2Rule) Label() string         { return "21–30 days" }

// OverdueRule holds invoices older than thirty days.
type OverdueRule struct{}

func (OverdueRule) Contains(age int) bool { return age > 30 }
func (OverdueRule) Label() string         { return "Over 30 days" }

// bucketOrder is the reporting order; the rules are disjoint and together
// cover every integer age.
var bucketOrder = []Bucket{BucketFresh, BucketWarn1, BucketWarn2, BucketOverdue}

var bucketRules = map[Bucket]BucketRule{
	BucketFresh:   FreshRule{},
	BucketWarn1:   Warn1Rule{},
	BucketWarn2:   Warn2Rule{},
	BucketOverdue: OverdueRule{},
}

// GetBucketRule returns the rule registered for b.
func GetBucketRule(b Bucket) (BucketRule, error) {
	rule, ok := bucketRules[b]
	if !ok {
		return nil, fmt.Errorf("unknown aging bucket: %s", b)
	}
	return rule, nil
}

// Buckets returns the bucket names in reporting order.
func Buckets() []Bucket {
	return append([]Bucket(nil), bucketOrder...)
}

// Classify returns the bucket an invoice of the given age falls into.
func Classify(ageDays int) Bucket {
	for _, b := range bucketOrder {
		if bucketRules[b].Contains(ageDays) {
			return b
		}
	}
	// unreachable while the rules cover every age
	return BucketOverdue
}

// BucketSummary is the count and price total of one bucket.
type BucketSummary struct {
	Bucket Bucket
	Label  string
	Count  int
	Total  decimal.Decimal
}

// AgingReport partitions the dated records of a view into buckets.
type AgingReport struct {
	Buckets []BucketSummary
	// Overdue lists the members of the overdue bucket, in view order.
	Overdue []InvoiceRecord
}

// Bucket returns the summary for b.
func (a AgingReport) Bucket(b Bucket) BucketSummary {
	for _, s := range a.Buckets {
		if s.Bucket == b {
			return s
		}
	}
	return BucketSummary{Bucket: b, Total: decimal.Zero}
}

// Classified returns how many records were placed in a bucket.
func (a AgingReport) Classified() int {
	n := 0
	for _, s := range a.Buckets {
		n += s.Count
	}
	return n
}

// Aging classifies every record with a known date. Records without one are
// left out of every bucket.
func Aging(rows []InvoiceRecord) AgingReport {
	pos := make(map[Bucket]int, len(bucketOrder))
	report := AgingReport{Buckets: make([]BucketSummary, len(bucketOrder))}
	for i, b := range bucketOrder {
		pos[b] = i
		report.Buckets[i] = BucketSummary{Bucket: b, Label: bucketRules[b].Label(), Total: decimal.Zero}
	}
	for _, r := range rows {
		if !r.HasDate() {
			continue
		}
		b := Classify(r.AgeDays)
		s := &report.Buckets[pos[b]]
		s.Count++
		s.Total = s.Total.Add(r.Price)
		if b == BucketOverdue {
			report.Overdue = append(report.Overdue, r)
		}
	}
	return report
}
