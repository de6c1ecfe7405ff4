package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"invoicedash/internal/core"
)

// WriteCSV writes rows as UTF-8, comma separated CSV with the invoice
// header. Cells hold the same text a full overwrite would store.
func WriteCSV(w io.Writer, rows []core.InvoiceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.Columns); err != nil {
		return &core.ExportError{Format: "csv", Err: err}
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return &core.ExportError{Format: "csv", Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &core.ExportError{Format: "csv", Err: err}
	}
	return nil
}

// ReadCSV parses a CSV document into a raw table, first record as header.
func ReadCSV(r io.Reader) (core.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return core.RawTable{}, nil
	}
	return core.RawTable{Header: records[0], Rows: records[1:]}, nil
}
