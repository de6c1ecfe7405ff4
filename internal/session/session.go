// Package session holds the per-user dashboard state: the connected store,
// the selected worksheet, its loaded table and the active filter.
//
// A Session runs one action at a time. Any action that fails leaves the
// last successfully loaded table in place.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"invoicedash/internal/core"
	"invoicedash/internal/services"
)

// ErrClosed is returned by every action on a torn-down session.
var ErrClosed = errors.New("session closed")

// ErrNotConnected is returned when the session has no record store yet.
var ErrNotConnected = errors.New("no record store connected")

// ErrNotLoaded is returned by actions that need a table before one was loaded.
var ErrNotLoaded = errors.New("no worksheet loaded")

// View is a consistent snapshot of a session for rendering.
type View struct {
	Worksheet string
	Loaded    bool
	Table     *core.Table
	Criteria  core.Criteria
	Rows      []core.InvoiceRecord // the filtered view
	Summary   core.Summary
	Aging     core.AgingReport
	Monthly   []core.MonthTotal
	Statuses  []string // distinct values of the full table
	Products  []string
}

type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	svc       *services.InvoiceService
	account   string
	worksheet string
	table     *core.Table
	criteria  core.Criteria
	closed    bool
}

// New creates a session bound to svc. It starts with no table.
func New(id string, svc *services.InvoiceService) *Session {
	return &Session{ID: id, CreatedAt: time.Now(), svc: svc}
}

// Service returns the service the session is bound to.
func (s *Session) Service() *services.InvoiceService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc
}

// Account names the credentials the session connected with, if any.
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Connect rebinds the session to another store and opens worksheet there.
// On failure the session keeps its previous store and table.
func (s *Session) Connect(ctx context.Context, svc *services.InvoiceService, account, worksheet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	table, err := svc.Load(ctx, worksheet)
	if err != nil {
		return err
	}
	s.svc, s.account = svc, account
	s.init(worksheet, table)
	return nil
}

// Open loads worksheet and makes it the session's table, resetting the
// filter to select everything.
func (s *Session) Open(ctx context.Context, worksheet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.svc == nil {
		return ErrNotConnected
	}

	table, err := s.svc.Load(ctx, worksheet)
	if err != nil {
		return err
	}
	s.init(worksheet, table)
	return nil
}

// Worksheets lists the worksheets of the connected store.
func (s *Session) Worksheets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.svc == nil {
		return nil, ErrNotConnected
	}
	return s.svc.ListWorksheets(ctx)
}

// Reload re-reads the current worksheet and keeps the active filter.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}

	table, err := s.svc.Load(ctx, s.worksheet)
	if err != nil {
		return err
	}
	s.table = table
	return nil
}

func (s *Session) init(worksheet string, table *core.Table) {
	s.worksheet = worksheet
	s.table = table
	s.criteria = core.DefaultCriteria(table.Records)
}

func (s *Session) ready() error {
	if s.closed {
		return ErrClosed
	}
	if s.table == nil {
		return ErrNotLoaded
	}
	return nil
}

// SetCriteria replaces the active filter.
func (s *Session) SetCriteria(c core.Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.criteria = c
	return nil
}

// ResetCriteria selects every record of the table again.
func (s *Session) ResetCriteria() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.criteria = core.DefaultCriteria(s.table.Records)
	return nil
}

// View returns the filtered rows and their aggregates.
func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrClosed
	}
	if s.table == nil {
		return View{Worksheet: s.worksheet}, nil
	}

	rows := s.table.Filter(s.criteria)
	return View{
		Worksheet: s.worksheet,
		Loaded:    true,
		Table:     s.table,
		Criteria:  s.criteria,
		Rows:      rows,
		Summary:   core.Summarize(rows),
		Aging:     core.Aging(rows),
		Monthly:   core.MonthlyRevenue(rows),
		Statuses:  core.DistinctStatuses(s.table.Records),
		Products:  core.DistinctProducts(s.table.Records),
	}, nil
}

// Worksheet returns the selected worksheet.
func (s *Session) Worksheet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worksheet
}

// Append adds one invoice and reloads the table so it reflects the store.
// When the reload fails the new record is added to the table locally.
func (s *Session) Append(ctx context.Context, form core.NewInvoice) (core.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return core.InvoiceRecord{}, err
	}

	rec, err := s.svc.Append(ctx, s.worksheet, s.table, form)
	if err != nil {
		return core.InvoiceRecord{}, err
	}

	if table, err := s.svc.Load(ctx, s.worksheet); err == nil {
		s.table = table
		if n := table.Len(); n > 0 {
			rec = table.Records[n-1]
		}
	} else {
		rec.Row = s.table.Len()
		next := *s.table
		next.Records = append(append([]core.InvoiceRecord(nil), s.table.Records...), rec)
		s.table = &next
	}
	s.widenCriteria(rec)
	return rec, nil
}

// widenCriteria lets a newly added record show up in the current view when
// its status, product or date lay outside what the table held before. Bounds
// the user narrowed stay as they were.
func (s *Session) widenCriteria(r core.InvoiceRecord) {
	before := core.DefaultCriteria(s.table.Records[:r.Row])
	c := s.criteria

	statuses := core.NewStringSet(c.Statuses.Sorted()...)
	if !before.Statuses.Contains(string(r.Status)) {
		statuses[string(r.Status)] = struct{}{}
	}
	products := core.NewStringSet(c.Products.Sorted()...)
	if !before.Products.Contains(r.Product) {
		products[r.Product] = struct{}{}
	}
	c.Statuses, c.Products = statuses, products

	if c.DateRange != nil && before.DateRange != nil && r.HasDate() {
		rng := c.DateRange.Normalize()
		if rng.To.Equal(before.DateRange.To.Time) && r.DateCreated.After(rng.To.Time) {
			rng.To = r.DateCreated
		}
		if rng.From.Equal(before.DateRange.From.Time) && r.DateCreated.Before(rng.From.Time) {
			rng.From = r.DateCreated
		}
		c.DateRange = &rng
	}
	s.criteria = c
}

// SaveEdits overwrites the worksheet with the full table plus edits. The
// table only changes once the store accepted the write.
func (s *Session) SaveEdits(ctx context.Context, edits []core.RowEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}

	merged, err := s.svc.SaveEdits(ctx, s.worksheet, s.table, edits)
	if err != nil {
		return err
	}
	s.table = s.table.Rewritten(merged)
	return nil
}

// Record returns the record at row of the full table.
func (s *Session) Record(row int) (core.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return core.InvoiceRecord{}, err
	}
	return s.table.Record(row)
}

// RunAction runs a row action on the record at row.
func (s *Session) RunAction(ctx context.Context, action services.RowAction, row int) (services.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return services.ActionResult{}, err
	}
	rec, err := s.table.Record(row)
	if err != nil {
		return services.ActionResult{}, err
	}
	res, err := action.Run(ctx, rec)
	if err != nil {
		return services.ActionResult{}, fmt.Errorf("%s row %d: %w", action.Name(), row+2, err)
	}
	return res, nil
}

// Do runs fn with the filtered view while holding the session. Used for
// exports and bulk actions.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, rows []core.InvoiceRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return fn(ctx, s.table.Filter(s.criteria))
}

// Close tears the session down and drops its table.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.table = nil
	s.criteria = core.Criteria{}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
