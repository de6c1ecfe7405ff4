package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"invoicedash/internal/core"
	ports "invoicedash/internal/sheets"
)

// SeedFile is the CSV loaded into the default worksheet by NewFromFiles.
const SeedFile = "invoices.csv"

// Store keeps worksheets in memory. It backs local development and tests.
type Store struct {
	mu     sync.Mutex
	sheets map[string]*worksheet
}

type worksheet struct {
	header []string
	rows   [][]string
}

var _ ports.RecordStore = (*Store)(nil)

// New returns an empty store holding one worksheet per name, each with the
// standard invoice header.
func New(worksheets ...string) *Store {
	s := &Store{sheets: make(map[string]*worksheet)}
	for _, name := range worksheets {
		s.sheets[name] = &worksheet{header: append([]string(nil), core.Columns...)}
	}
	return s
}

// NewFromFiles seeds the store from CSV files in dir. SeedFile becomes
// defaultWorksheet; any other *.csv becomes a worksheet named after the
// file. When dir holds no seed, defaultWorksheet starts empty.
func NewFromFiles(dir, defaultWorksheet string) (*Store, error) {
	s := New()
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob seeds: %w", err)
	}
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if filepath.Base(p) == SeedFile {
			name = defaultWorksheet
		}
		ws, err := readCSV(p)
		if err != nil {
			return nil, err
		}
		s.sheets[name] = ws
	}
	if _, ok := s.sheets[defaultWorksheet]; !ok {
		s.sheets[defaultWorksheet] = &worksheet{header: append([]string(nil), core.Columns...)}
	}
	return s, nil
}

func readCSV(path string) (*worksheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	if len(records) == 0 {
		return &worksheet{}, nil
	}
	return &worksheet{header: records[0], rows: records[1:]}, nil
}

// ListWorksheets returns the worksheet names in ascending order.
func (s *Store) ListWorksheets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sheets))
	for name := range s.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadAll returns a copy of the worksheet.
func (s *Store) ReadAll(_ context.Context, name string) (core.RawTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.sheets[name]
	if !ok {
		return core.RawTable{}, fmt.Errorf("worksheet %q not found", name)
	}
	return core.RawTable{Header: copyRow(ws.header), Rows: copyRows(ws.rows)}, nil
}

// WriteAll replaces the worksheet, creating it when missing.
func (s *Store) WriteAll(_ context.Context, name string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[name] = &worksheet{header: copyRow(header), rows: copyRows(rows)}
	return nil
}

// AppendRow adds row to an existing worksheet.
func (s *Store) AppendRow(_ context.Context, name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.sheets[name]
	if !ok {
		return fmt.Errorf("worksheet %q not found", name)
	}
	ws.rows = append(ws.rows, copyRow(row))
	return nil
}

func copyRow(in []string) []string {
	return append([]string(nil), in...)
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, r := range in {
		out[i] = copyRow(r)
	}
	return out
}
