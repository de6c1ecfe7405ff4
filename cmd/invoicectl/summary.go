package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"invoicedash/internal/core"
)

func summaryCmd() *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show revenue, aging and monthly totals of a worksheet",
		Long: `Load the worksheet, apply the filters and print the same metrics the
dashboard shows: revenue per status, mean age, aging buckets and revenue
per month.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, res, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend(res)

			table, err := svc.Load(cmd.Context(), worksheet)
			if err != nil {
				return err
			}
			c, err := filters.criteria(table)
			if err != nil {
				return err
			}
			rows := table.Filter(c)
			return printSummary(cmd.OutOrStdout(), worksheet, table, rows)
		},
	}
	filters.register(cmd)
	return cmd
}

func printSummary(out io.Writer, name string, table *core.Table, rows []core.InvoiceRecord) error {
	s := core.Summarize(rows)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Worksheet\t%s\n", name)
	fmt.Fprintf(w, "Invoices\t%d of %d\n", s.Count, table.Len())
	fmt.Fprintf(w, "Revenue\t%s\n", core.FormatPrice(s.Revenue))
	for _, st := range s.ByStatus {
		fmt.Fprintf(w, "  %s\t%s\n", st.Status, core.FormatPrice(st.Total))
	}
	fmt.Fprintf(w, "Unpaid\t%d\n", s.UnpaidCount)
	fmt.Fprintf(w, "Mean age\t%s\n", s.MeanAgeLabel())

	fmt.Fprintln(w, "\nAging\t")
	for _, b := range core.Aging(rows).Buckets {
		fmt.Fprintf(w, "  %s\t%d\t%s\n", b.Label, b.Count, core.FormatPrice(b.Total))
	}

	fmt.Fprintln(w, "\nMonth\t")
	for _, m := range core.MonthlyRevenue(rows) {
		fmt.Fprintf(w, "  %s\t%s\n", m.Month, core.FormatPrice(m.Total))
	}

	for _, e := range table.Issues {
		fmt.Fprintf(w, "\nwarning: %v\n", e)
	}
	return w.Flush()
}
