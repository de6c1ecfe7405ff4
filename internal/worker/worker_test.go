package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/core"
	"invoicedash/internal/services"
	"invoicedash/internal/sheets/memory"
	"invoicedash/internal/storage"
)

// fakeSource is a journaled store with one pending write per worksheet.
type fakeSource struct {
	mu      sync.Mutex
	tables  map[string]core.RawTable
	pending []storage.WriteRecord
}

func newFakeSource(worksheets ...string) *fakeSource {
	s := &fakeSource{tables: map[string]core.RawTable{}}
	for _, ws := range worksheets {
		s.tables[ws] = core.RawTable{
			Header: core.Columns,
			Rows:   [][]string{{"Ada", "ada@example.com", "Audit", "Q2", "100", "https://x/1", "Paid", "2025-06-25"}},
		}
		s.pending = append(s.pending, storage.WriteRecord{ID: "w-" + ws, Worksheet: ws, Kind: core.WriteAppend, RowCount: 1})
	}
	return s
}

func (s *fakeSource) ReadAll(_ context.Context, ws string) (core.RawTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[ws]
	if !ok {
		return core.RawTable{}, errors.New("no such worksheet")
	}
	return t, nil
}

func (s *fakeSource) ListUnsynced(context.Context, int) ([]storage.WriteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.WriteRecord(nil), s.pending...), nil
}

func (s *fakeSource) MarkWorksheetSynced(_ context.Context, ws string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []storage.WriteRecord
	var n int64
	for _, w := range s.pending {
		if w.Worksheet == ws {
			n++
			continue
		}
		kept = append(kept, w)
	}
	s.pending = kept
	return n, nil
}

// fakeConsumer hands msgs to the handler, then fails with err or, when err
// is nil, blocks until ctx is done.
type fakeConsumer struct {
	msgs  []*amqp.WorksheetSyncMessage
	err   error
	calls int
	mu    sync.Mutex
}

func (c *fakeConsumer) ConsumeWorksheetSync(ctx context.Context, handler amqp.SyncHandler) error {
	c.mu.Lock()
	c.calls++
	msgs := c.msgs
	c.msgs = nil
	c.mu.Unlock()

	for _, m := range msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newProcessor(source services.MirrorSource, target *memory.Store) *services.SyncProcessor {
	cfg := services.DefaultSyncProcessorConfig()
	cfg.PollInterval = 0
	return services.NewSyncProcessor(source, target, cfg, nil)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mirrored(target *memory.Store, ws string) func() bool {
	return func() bool {
		raw, err := target.ReadAll(context.Background(), ws)
		return err == nil && len(raw.Rows) == 1
	}
}

func TestWorkerMirrorsOnMessage(t *testing.T) {
	source := newFakeSource("Sheet1")
	source.pending = nil
	target := memory.New()
	consumer := &fakeConsumer{msgs: []*amqp.WorksheetSyncMessage{
		amqp.NewWorksheetSyncMessage("w-1", "Sheet1", string(core.WriteAppend), 1),
	}}
	w := New(consumer, newProcessor(source, target), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, mirrored(target, "Sheet1"))
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWorkerCatchesUpWithoutBroker(t *testing.T) {
	source := newFakeSource("Sheet1", "Archive")
	target := memory.New()
	w := New(nil, newProcessor(source, target), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, mirrored(target, "Sheet1"))
	waitFor(t, mirrored(target, "Archive"))
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pending, _ := source.ListUnsynced(context.Background(), 10); len(pending) != 0 {
		t.Errorf("pending writes left: %v", pending)
	}
}

func TestWorkerGivesUpAfterMaxRetries(t *testing.T) {
	errBroker := errors.New("connection reset")
	consumer := &fakeConsumer{err: errBroker}
	w := New(consumer, newProcessor(newFakeSource(), memory.New()), Config{RetryDelay: time.Millisecond, MaxRetries: 3}, nil)

	err := w.Run(context.Background())
	if !errors.Is(err, errBroker) {
		t.Fatalf("Run() error = %v, want %v", err, errBroker)
	}
	if consumer.Calls() != 3 {
		t.Errorf("consume attempts = %d, want 3", consumer.Calls())
	}
}
