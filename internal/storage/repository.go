package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"invoicedash/internal/core"
	"invoicedash/internal/sheets"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrWorksheetNotFound is returned for reads and appends on an unknown worksheet.
var ErrWorksheetNotFound = errors.New("worksheet not found")

// WriteRecord is one entry of the write journal.
type WriteRecord struct {
	ID        string
	Worksheet string
	Kind      core.WriteKind
	RowCount  int
	CreatedAt time.Time
	SyncedAt  *time.Time
}

// SQLiteRepository stores worksheets in SQLite and journals every write.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ sheets.RecordStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListWorksheets implements sheets.WorksheetLister.
func (r *SQLiteRepository) ListWorksheets(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM worksheets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan worksheet: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReadAll implements sheets.TableReader.
func (r *SQLiteRepository) ReadAll(ctx context.Context, worksheet string) (core.RawTable, error) {
	var headerJSON string
	err := r.db.QueryRowContext(ctx, `SELECT header FROM worksheets WHERE name = ?`, worksheet).Scan(&headerJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RawTable{}, fmt.Errorf("%w: %q", ErrWorksheetNotFound, worksheet)
	}
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read worksheet %q: %w", worksheet, err)
	}

	var rt core.RawTable
	if err := json.Unmarshal([]byte(headerJSON), &rt.Header); err != nil {
		return core.RawTable{}, fmt.Errorf("decode header of %q: %w", worksheet, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT cells FROM worksheet_rows WHERE worksheet = ? ORDER BY position`, worksheet)
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read rows of %q: %w", worksheet, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return core.RawTable{}, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return core.RawTable{}, fmt.Errorf("decode row of %q: %w", worksheet, err)
		}
		rt.Rows = append(rt.Rows, cells)
	}
	return rt, rows.Err()
}

// WriteAll implements sheets.TableWriter.
func (r *SQLiteRepository) WriteAll(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	_, err := r.Apply(ctx, core.WriteCommand{Kind: core.WriteReplace, Worksheet: worksheet, Header: header, Rows: rows})
	return err
}

// AppendRow implements sheets.TableWriter.
func (r *SQLiteRepository) AppendRow(ctx context.Context, worksheet string, row []string) error {
	_, err := r.Apply(ctx, core.WriteCommand{Kind: core.WriteAppend, Worksheet: worksheet, Rows: [][]string{row}})
	return err
}

// Apply performs cmd and journals it in one transaction.
func (r *SQLiteRepository) Apply(ctx context.Context, cmd core.WriteCommand) (WriteRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return WriteRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	switch cmd.Kind {
	case core.WriteReplace:
		err = replaceTx(ctx, tx, cmd.Worksheet, cmd.Header, cmd.Rows)
	case core.WriteAppend:
		if len(cmd.Rows) != 1 {
			return WriteRecord{}, fmt.Errorf("append carries %d rows, want 1", len(cmd.Rows))
		}
		err = appendTx(ctx, tx, cmd.Worksheet, cmd.Rows[0])
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownWriteKind, cmd.Kind)
	}
	if err != nil {
		return WriteRecord{}, err
	}

	rec := WriteRecord{
		ID:        uuid.NewString(),
		Worksheet: cmd.Worksheet,
		Kind:      cmd.Kind,
		RowCount:  len(cmd.Rows),
		CreatedAt: r.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO write_journal (id, worksheet, kind, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Worksheet, string(rec.Kind), rec.RowCount, rec.CreatedAt); err != nil {
		return WriteRecord{}, fmt.Errorf("journal write: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return WriteRecord{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Worksheet write saved to SQLite",
		"id", rec.ID,
		"worksheet", rec.Worksheet,
		"kind", rec.Kind,
		"rows", rec.RowCount)
	return rec, nil
}

func replaceTx(ctx context.Context, tx *sql.Tx, worksheet string, header []string, rows [][]string) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO worksheets (name, header, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET header = excluded.header, updated_at = CURRENT_TIMESTAMP`,
		worksheet, string(headerJSON)); err != nil {
		return fmt.Errorf("upsert worksheet %q: %w", worksheet, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM worksheet_rows WHERE worksheet = ?`, worksheet); err != nil {
		return fmt.Errorf("clear worksheet %q: %w", worksheet, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO worksheet_rows (worksheet, position, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()
	for i, row := range rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, worksheet, i, string(cells)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

func appendTx(ctx context.Context, tx *sql.Tx, worksheet string, row []string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM worksheets WHERE name = ?`, worksheet).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrWorksheetNotFound, worksheet)
	}
	if err != nil {
		return fmt.Errorf("look up worksheet %q: %w", worksheet, err)
	}

	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO worksheet_rows (worksheet, position, cells)
		 SELECT ?, COALESCE(MAX(position) + 1, 0), ? FROM worksheet_rows WHERE worksheet = ?`,
		worksheet, string(cells), worksheet); err != nil {
		return fmt.Errorf("append row to %q: %w", worksheet, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE worksheets SET updated_at = CURRENT_TIMESTAMP WHERE name = ?`, worksheet); err != nil {
		return fmt.Errorf("touch worksheet %q: %w", worksheet, err)
	}
	return nil
}

// ListWrites returns the most recent journal entries, newest first. An
// empty worksheet lists every worksheet.
func (r *SQLiteRepository) ListWrites(ctx context.Context, worksheet string, limit int) ([]WriteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, worksheet, kind, row_count, created_at, synced_at
		 FROM write_journal
		 WHERE ? = '' OR worksheet = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, worksheet, worksheet, limit)
	if err != nil {
		return nil, fmt.Errorf("list writes: %w", err)
	}
	defer rows.Close()

	return scanWrites(rows)
}

// ListUnsynced returns journal entries not yet mirrored, oldest first.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]WriteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, worksheet, kind, row_count, created_at, synced_at
		 FROM write_journal
		 WHERE synced_at IS NULL
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced writes: %w", err)
	}
	defer rows.Close()

	return scanWrites(rows)
}

func scanWrites(rows *sql.Rows) ([]WriteRecord, error) {
	var out []WriteRecord
	for rows.Next() {
		var (
			rec    WriteRecord
			kind   string
			synced sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Worksheet, &kind, &rec.RowCount, &rec.CreatedAt, &synced); err != nil {
			return nil, fmt.Errorf("scan write: %w", err)
		}
		rec.Kind = core.WriteKind(kind)
		if synced.Valid {
			t := synced.Time
			rec.SyncedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkWorksheetSynced marks every pending write of worksheet as mirrored and
// returns how many were marked. A full overwrite of the mirror covers all of
// them at once.
func (r *SQLiteRepository) MarkWorksheetSynced(ctx context.Context, worksheet string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE write_journal SET synced_at = ? WHERE worksheet = ? AND synced_at IS NULL`,
		r.now().UTC(), worksheet)
	if err != nil {
		return 0, fmt.Errorf("mark worksheet %q synced: %w", worksheet, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MarkSynced records that the write with id has been mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE write_journal SET synced_at = ? WHERE id = ?`, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark write %s synced: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("write %s not found", id)
	}
	slog.InfoContext(ctx, "Write marked as synced", "id", id)
	return nil
}

// EnsureWorksheet creates worksheet with the standard header when missing.
func (r *SQLiteRepository) EnsureWorksheet(ctx context.Context, worksheet string) error {
	headerJSON, err := json.Marshal(core.Columns)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO worksheets (name, header) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		worksheet, string(headerJSON)); err != nil {
		return fmt.Errorf("create worksheet %q: %w", worksheet, err)
	}
	return nil
}
