package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicedash/internal/core"
)

func appendCmd() *cobra.Command {
	var form core.NewInvoice
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Add one invoice to the worksheet",
		Long: `Validate the invoice the way the dashboard form does and append it as a
new row. The creation date defaults to today.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, res, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend(res)

			rec, err := svc.Append(cmd.Context(), worksheet, nil, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s for %s (%s, %s)\n",
				rec.Product, rec.CustomerName, core.FormatPrice(rec.Price), rec.Status)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.CustomerName, "name", "", "customer name")
	f.StringVar(&form.CustomerEmail, "email", "", "customer email")
	f.StringVar(&form.Product, "product", "", "product")
	f.StringVar(&form.Description, "description", "", "product description")
	f.StringVar(&form.Price, "price", "", "price, e.g. 120.50")
	f.StringVar(&form.InvoiceLink, "link", "", "invoice link")
	f.StringVar(&form.Status, "status", string(core.StatusPending), "Pending, Paid or Overdue")
	f.StringVar(&form.DateCreated, "date", "", "creation date YYYY-MM-DD (default: today)")
	for _, name := range []string{"name", "email", "product", "description", "price", "link"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
