package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the write journal of the sqlite backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend(res)

			if res.Journal == nil {
				return errors.New("the write journal is only kept by the sqlite backend")
			}
			name := worksheet
			if all {
				name = ""
			}
			writes, err := res.Journal.ListWrites(cmd.Context(), name, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORKSHEET\tKIND\tROWS\tCREATED\tSYNCED")
			for _, wr := range writes {
				synced := "pending"
				if wr.SyncedAt != nil {
					synced = wr.SyncedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					wr.ID, wr.Worksheet, wr.Kind, wr.RowCount, wr.CreatedAt.Format(time.RFC3339), synced)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&all, "all", false, "include every worksheet")
	return cmd
}
