package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"invoicedash/internal/export"
	"invoicedash/internal/log"
)

func exportCmd() *cobra.Command {
	var (
		filters filterFlags
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered worksheet as CSV, PDF or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, ok := export.Lookup(format)
			if !ok {
				return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(export.Names(), ", "))
			}

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

			var buf bytes.Buffer
			if err := f.Write(&buf, rows); err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if out == "" {
				out = f.Filename
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("Export written",
				log.FieldFormat, f.Name,
				log.FieldRowCount, len(rows),
				"path", out)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format ("+strings.Join(export.Names(), ", ")+")")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default: invoices.<format>)`)
	return cmd
}
