package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/core"
	"invoicedash/internal/log"
	"invoicedash/internal/sheets"
	"invoicedash/internal/storage"
)

// Journal is a store that records every write it applies. The sqlite
// backend implements it.
type Journal interface {
	Apply(ctx context.Context, cmd core.WriteCommand) (storage.WriteRecord, error)
}

// SyncPublisher announces journaled writes to the sheet mirror worker.
type SyncPublisher interface {
	PublishWorksheetSync(ctx context.Context, msg *amqp.WorksheetSyncMessage) error
}

// InvoiceService runs load and write actions against one record store.
// It holds no table state; sessions own the tables.
type InvoiceService struct {
	store     sheets.RecordStore
	journal   Journal
	publisher SyncPublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an InvoiceService.
type Option func(*InvoiceService)

// WithPublisher publishes a sync message after every journaled write.
func WithPublisher(p SyncPublisher) Option {
	return func(s *InvoiceService) { s.publisher = p }
}

// WithTimeout bounds every store call.
func WithTimeout(d time.Duration) Option {
	return func(s *InvoiceService) { s.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(s *InvoiceService) { s.logger = l }
}

// WithClock replaces the time source used to compute ages.
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

func NewInvoiceService(store sheets.RecordStore, opts ...Option) *InvoiceService {
	s := &InvoiceService{
		store:   store,
		logger:  log.Discard(),
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	if j, ok := store.(Journal); ok {
		s.journal = j
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentInvoice)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Store returns the record store the service writes to.
func (s *InvoiceService) Store() sheets.RecordStore { return s.store }

// Today returns the current calendar day.
func (s *InvoiceService) Today() core.Date { return core.DateOf(s.now()) }

func (s *InvoiceService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ListWorksheets returns the worksheet titles the store exposes.
func (s *InvoiceService) ListWorksheets(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	names, err := s.store.ListWorksheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	return names, nil
}

// Load reads a worksheet and builds its invoice table.
func (s *InvoiceService) Load(ctx context.Context, worksheet string) (*core.Table, error) {
	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.store.ReadAll(rctx, worksheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", worksheet, err)
	}
	table, err := core.Load(raw, s.now())
	if err != nil {
		return nil, err
	}

	if len(table.Issues) > 0 {
		s.logger.WarnContext(ctx, "Worksheet has unparsable cells",
			log.FieldWorksheet, worksheet,
			"issues", len(table.Issues))
	}
	s.logger.DebugContext(ctx, "Worksheet loaded",
		log.FieldWorksheet, worksheet,
		log.FieldRowCount, table.Len(),
		log.FieldOperation, log.OpLoad)
	return table, nil
}

// Append validates the form and appends one row to the worksheet, laid out
// like table. With a nil table the worksheet header is read first.
func (s *InvoiceService) Append(ctx context.Context, worksheet string, table *core.Table, form core.NewInvoice) (core.InvoiceRecord, error) {
	if table == nil {
		var err error
		if table, err = s.layout(ctx, worksheet); err != nil {
			return core.InvoiceRecord{}, err
		}
	}
	cmd, rec, err := core.NewAppendCommand(worksheet, table, form, s.Today())
	if err != nil {
		return core.InvoiceRecord{}, err
	}
	if err := s.Commit(ctx, cmd); err != nil {
		return core.InvoiceRecord{}, err
	}
	return rec, nil
}

// layout loads worksheet to learn its column order. A worksheet without a
// header yields nil, which appends in Columns order.
func (s *InvoiceService) layout(ctx context.Context, worksheet string) (*core.Table, error) {
	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.store.ReadAll(rctx, worksheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", worksheet, err)
	}
	if len(raw.Header) == 0 {
		return nil, nil
	}
	return core.Load(raw, s.now())
}

// SaveEdits overwrites the worksheet with full plus edits and returns the
// merged records. full is not modified.
func (s *InvoiceService) SaveEdits(ctx context.Context, worksheet string, full *core.Table, edits []core.RowEdit) ([]core.InvoiceRecord, error) {
	cmd, merged, err := core.ApplyEdits(worksheet, full, edits)
	if err != nil {
		return nil, err
	}
	if err := s.Commit(ctx, cmd); err != nil {
		return nil, err
	}
	return merged, nil
}

// Commit sends cmd to the store. Store failures come back as
// *core.StoreWriteError; nothing is retried.
func (s *InvoiceService) Commit(ctx context.Context, cmd core.WriteCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	wctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		record storage.WriteRecord
		err    error
	)
	if s.journal != nil {
		record, err = s.journal.Apply(wctx, cmd)
	} else {
		err = sheets.Execute(wctx, s.store, cmd)
	}
	if err != nil {
		s.events.LogError(ctx, "Worksheet write failed", err, log.ComponentInvoice, string(cmd.Kind),
			log.NewFields().WithWorksheet(cmd.Worksheet))
		return &core.StoreWriteError{Kind: cmd.Kind, Worksheet: cmd.Worksheet, Err: err}
	}

	s.events.LogWriteCommitted(ctx, cmd.Worksheet, string(cmd.Kind), cmd.RowCount(), record.ID)

	if record.ID != "" {
		s.publish(ctx, record)
	}
	return nil
}

func (s *InvoiceService) publish(ctx context.Context, record storage.WriteRecord) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping sync message",
			log.FieldWriteID, record.ID)
		return
	}
	msg := amqp.NewWorksheetSyncMessage(record.ID, record.Worksheet, string(record.Kind), record.RowCount)
	if err := s.publisher.PublishWorksheetSync(ctx, msg); err != nil {
		// The write is committed locally; the mirror catches up on the next one.
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldWriteID, record.ID,
			log.FieldError, err)
	}
}

// IsStoreWriteError reports whether err came from a failed store write.
func IsStoreWriteError(err error) bool {
	var swe *core.StoreWriteError
	return errors.As(err, &swe)
}
