package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func worksheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worksheets",
		Short: "List the worksheets of the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, res, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend(res)

			names, err := svc.ListWorksheets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, n := range names {
				marker := " "
				if n == worksheet {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, n)
			}
			return nil
		},
	}
}
