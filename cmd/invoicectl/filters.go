package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicedash/internal/core"
)

// filterFlags are the view filters shared by summary and export.
type filterFlags struct {
	statuses []string
	products []string
	from, to string
	search   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "only these statuses (repeatable)")
	cmd.Flags().StringSliceVar(&f.products, "product", nil, "only these products (repeatable)")
	cmd.Flags().StringVar(&f.from, "from", "", "created on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "created on or before YYYY-MM-DD")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "customer name or product contains")
}

// criteria starts from the filter selecting every row of table and narrows
// it by the flags that were given.
func (f *filterFlags) criteria(table *core.Table) (core.Criteria, error) {
	c := core.DefaultCriteria(table.Records)
	if len(f.statuses) > 0 {
		c.Statuses = core.NewStringSet(f.statuses...)
	}
	if len(f.products) > 0 {
		c.Products = core.NewStringSet(f.products...)
	}
	c.Search = f.search

	if f.from == "" && f.to == "" {
		return c, nil
	}
	rng := core.DateRange{}
	if c.DateRange != nil {
		rng = *c.DateRange
	}
	if f.from != "" {
		d, ok := core.ParseDate(f.from)
		if !ok {
			return core.Criteria{}, fmt.Errorf("--from: %w", core.ErrInvalidDate)
		}
		rng.From = d
	}
	if f.to != "" {
		d, ok := core.ParseDate(f.to)
		if !ok {
			return core.Criteria{}, fmt.Errorf("--to: %w", core.ErrInvalidDate)
		}
		rng.To = d
	}
	if rng.From.IsZero() {
		rng.From = rng.To
	}
	if rng.To.IsZero() {
		rng.To = rng.From
	}
	c.DateRange = &rng
	return c, nil
}
