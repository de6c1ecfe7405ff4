package sheets

import (
	"context"
	"fmt"

	"invoicedash/internal/core"
)

// Ports for outbound adapters.
type (
	WorksheetLister interface {
		// ListWorksheets returns the worksheet titles of the connected spreadsheet.
		ListWorksheets(ctx context.Context) ([]string, error)
	}

	TableReader interface {
		// ReadAll returns the header row and every data row of a worksheet.
		ReadAll(ctx context.Context, worksheet string) (core.RawTable, error)
	}

	TableWriter interface {
		// WriteAll clears the worksheet and writes header and rows in its place.
		WriteAll(ctx context.Context, worksheet string, header []string, rows [][]string) error
		// AppendRow adds one row after the last populated row.
		AppendRow(ctx context.Context, worksheet string, row []string) error
	}

	// RecordStore is the full contract a spreadsheet backend implements.
	RecordStore interface {
		WorksheetLister
		TableReader
		TableWriter
	}
)

// Execute runs a write command against w.
func Execute(ctx context.Context, w TableWriter, cmd core.WriteCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	switch cmd.Kind {
	case core.WriteAppend:
		return w.AppendRow(ctx, cmd.Worksheet, cmd.Rows[0])
	case core.WriteReplace:
		return w.WriteAll(ctx, cmd.Worksheet, cmd.Header, cmd.Rows)
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownWriteKind, cmd.Kind)
	}
}
