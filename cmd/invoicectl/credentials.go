package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicedash/internal/backend"
	gsheet "invoicedash/internal/sheets/google"
)

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Work with Google service account keys",
	}
	cmd.AddCommand(credentialsVerifyCmd())
	return cmd
}

func credentialsVerifyCmd() *cobra.Command {
	var spreadsheetID string
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Check a service account key and, optionally, its spreadsheet access",
		Long: `Parse FILE with the same strict rules the dashboard applies to uploads.
With --spreadsheet the key is also used to list the worksheets of that
spreadsheet, which proves it was shared with the service account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sa, err := gsheet.ParseServiceAccount(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service account %s (project %s)\n", sa.ClientEmail, sa.ProjectID)

			if spreadsheetID == "" {
				return nil
			}
			res, err := backend.NewFactory(logger).ConnectSheets(cmd.Context(), spreadsheetID, data)
			if err != nil {
				return err
			}
			defer closeBackend(res)

			names, err := res.Store.ListWorksheets(cmd.Context())
			if err != nil {
				return fmt.Errorf("spreadsheet %s: %w", spreadsheetID, err)
			}
			fmt.Fprintf(out, "Spreadsheet %s: %d worksheet(s)\n", spreadsheetID, len(names))
			for _, n := range names {
				fmt.Fprintf(out, "  %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "spreadsheet ID to test access against")
	return cmd
}
