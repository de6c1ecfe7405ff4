package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicedash/internal/core"
	"invoicedash/internal/log"
	"invoicedash/internal/notify"
	"invoicedash/internal/services"
	"invoicedash/internal/sheets"
	"invoicedash/internal/sheets/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

var sampleRows = [][]string{
	{"Ada", "ada@example.com", "Audit", "Q2", "100", "https://x/1", "Paid", "2025-06-25"},
	{"Bob", "bob@example.com", "Consulting", "2 days", "50", "https://x/2", "Pending", "2025-06-15"},
	{"Cyd", "cyd@example.com", "Audit", "Q1", "25", "https://x/3", "Overdue", "2025-05-01"},
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.WriteAll(context.Background(), "Sheet1", core.Columns, sampleRows))
	require.NoError(t, store.WriteAll(context.Background(), "Archive", core.Columns, sampleRows[:1]))
	return store
}

func newSvc(store sheets.RecordStore) *services.InvoiceService {
	return services.NewInvoiceService(store, services.WithClock(func() time.Time { return now }))
}

func openSession(t *testing.T, store sheets.RecordStore) *Session {
	t.Helper()
	s := New("test", newSvc(store))
	require.NoError(t, s.Open(context.Background(), "Sheet1"))
	return s
}

// brokenStore fails everything after reads succeed once.
type brokenStore struct {
	sheets.RecordStore
	failReads bool
}

var errDown = errors.New("store down")

func (b *brokenStore) ReadAll(ctx context.Context, ws string) (core.RawTable, error) {
	if b.failReads {
		return core.RawTable{}, errDown
	}
	return b.RecordStore.ReadAll(ctx, ws)
}

func (b *brokenStore) WriteAll(context.Context, string, []string, [][]string) error { return errDown }
func (b *brokenStore) AppendRow(context.Context, string, []string) error            { return errDown }

func TestViewBeforeLoad(t *testing.T) {
	s := New("x", newSvc(newStore(t)))
	v, err := s.View()
	require.NoError(t, err)
	assert.False(t, v.Loaded)

	assert.ErrorIs(t, s.SetCriteria(core.Criteria{}), ErrNotLoaded)
	_, err = s.Record(0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestOpenSelectsEverything(t *testing.T) {
	s := openSession(t, newStore(t))

	v, err := s.View()
	require.NoError(t, err)
	assert.True(t, v.Loaded)
	assert.Equal(t, "Sheet1", v.Worksheet)
	assert.Len(t, v.Rows, 3)
	assert.Equal(t, []string{"Overdue", "Paid", "Pending"}, v.Statuses)
	assert.Equal(t, []string{"Audit", "Consulting"}, v.Products)

	assert.Equal(t, 3, v.Summary.Count)
	assert.True(t, v.Summary.Revenue.Equal(decimal.NewFromInt(175)))
	assert.Equal(t, 2, v.Summary.UnpaidCount)
	assert.Equal(t, 1, v.Aging.Bucket(core.BucketOverdue).Count)
	require.Len(t, v.Monthly, 2)
	assert.Equal(t, "2025-05", v.Monthly[0].Month)
}

func TestCriteriaShapeTheView(t *testing.T) {
	s := openSession(t, newStore(t))

	require.NoError(t, s.SetCriteria(core.Criteria{
		Statuses: core.NewStringSet("Pending", "Overdue"),
		Products: core.NewStringSet("Audit", "Consulting"),
	}))
	v, _ := s.View()
	assert.Len(t, v.Rows, 2)
	assert.Equal(t, 2, v.Summary.UnpaidCount)

	require.NoError(t, s.SetCriteria(core.Criteria{
		Statuses: core.NewStringSet(),
		Products: core.NewStringSet("Audit"),
	}))
	v, _ = s.View()
	assert.Empty(t, v.Rows, "empty status set selects nothing")
	assert.Equal(t, "N/A", v.Summary.MeanAgeLabel())

	require.NoError(t, s.ResetCriteria())
	v, _ = s.View()
	assert.Len(t, v.Rows, 3)
}

func TestOpenOtherWorksheetResetsFilter(t *testing.T) {
	s := openSession(t, newStore(t))
	require.NoError(t, s.SetCriteria(core.Criteria{}))

	require.NoError(t, s.Open(context.Background(), "Archive"))
	v, _ := s.View()
	assert.Equal(t, "Archive", v.Worksheet)
	assert.Len(t, v.Rows, 1)
}

func TestFailedLoadKeepsLastGoodTable(t *testing.T) {
	store := &brokenStore{RecordStore: newStore(t)}
	s := openSession(t, store)

	store.failReads = true
	assert.ErrorIs(t, s.Open(context.Background(), "Archive"), errDown)
	assert.ErrorIs(t, s.Reload(context.Background()), errDown)

	v, err := s.View()
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", v.Worksheet)
	assert.Len(t, v.Rows, 3)
}

func TestAppendReloads(t *testing.T) {
	store := newStore(t)
	s := openSession(t, store)

	rec, err := s.Append(context.Background(), core.NewInvoice{
		CustomerName:  "Dee",
		CustomerEmail: "dee@example.com",
		Product:       "Training",
		Description:   "Workshop",
		Price:         "10",
		InvoiceLink:   "https://x/4",
		Status:        "Pending",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Row)

	v, _ := s.View()
	require.Len(t, v.Rows, 4, "new product is added to the active filter")
	assert.Equal(t, "Dee", v.Rows[3].CustomerName)
}

func TestAppendToReorderedWorksheet(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	header := []string{"Status", "customer NAME", "Customer email", "Product", "Product Description", "Price", "Invoice Link", "Date Created"}
	require.NoError(t, store.WriteAll(ctx, "Sheet1", header, [][]string{
		{"Paid", "Ada", "ada@example.com", "Audit", "Q2", "100", "https://x/1", "2025-06-25"},
	}))
	s := openSession(t, store)
	form := core.NewInvoice{
		CustomerName: "Bob", CustomerEmail: "bob@example.com", Product: "Audit",
		Description: "d", Price: "5", InvoiceLink: "l", Status: "Pending",
	}

	rec, err := s.Append(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "Bob", rec.CustomerName)
	assert.Equal(t, "bob@example.com", rec.CustomerEmail)
	assert.Equal(t, core.StatusPending, rec.Status)

	raw, err := store.ReadAll(ctx, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending", "Bob", "bob@example.com", "Audit", "d", "5", "l", "2025-06-30"}, raw.Rows[1])

	// A save rewrites the worksheet in the standard column order.
	first, err := s.Record(0)
	require.NoError(t, err)
	require.NoError(t, s.SaveEdits(ctx, []core.RowEdit{core.EditOf(first)}))
	form.CustomerName = "Cyd"
	rec, err = s.Append(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "Cyd", rec.CustomerName)
	assert.Equal(t, core.StatusPending, rec.Status)

	raw, err = store.ReadAll(ctx, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, core.Columns, raw.Header)
	assert.Equal(t, "Cyd", raw.Rows[2][0])
}

func TestFailedWritesLeaveTableUnchanged(t *testing.T) {
	store := &brokenStore{RecordStore: newStore(t)}
	s := openSession(t, store)

	_, err := s.Append(context.Background(), core.NewInvoice{
		CustomerName: "Dee", CustomerEmail: "dee@example.com", Product: "Training",
		Description: "Workshop", Price: "10", InvoiceLink: "l", Status: "Pending",
	})
	var swe *core.StoreWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, core.WriteAppend, swe.Kind)

	rec, err := s.Record(0)
	require.NoError(t, err)
	edit := core.EditOf(rec)
	edit.Status = "Overdue"
	require.ErrorAs(t, s.SaveEdits(context.Background(), []core.RowEdit{edit}), &swe)
	assert.Equal(t, core.WriteReplace, swe.Kind)

	v, _ := s.View()
	assert.Len(t, v.Rows, 3)
	assert.Equal(t, core.StatusPaid, v.Rows[0].Status)
}

func TestSaveEditsFromFilteredView(t *testing.T) {
	store := newStore(t)
	s := openSession(t, store)
	require.NoError(t, s.SetCriteria(core.Criteria{
		Statuses: core.NewStringSet("Pending"),
		Products: core.NewStringSet("Consulting"),
	}))

	v, _ := s.View()
	require.Len(t, v.Rows, 1)
	edit := core.EditOf(v.Rows[0])
	edit.Price = "75"
	require.NoError(t, s.SaveEdits(context.Background(), []core.RowEdit{edit}))

	raw, err := store.ReadAll(context.Background(), "Sheet1")
	require.NoError(t, err)
	require.Len(t, raw.Rows, 3)
	assert.Equal(t, "75", raw.Rows[1][4])

	rec, _ := s.Record(1)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(75)))
}

func TestRunAction(t *testing.T) {
	s := openSession(t, newStore(t))
	mailer := notify.NewLogMailer(log.Discard())
	reg := services.DefaultActions(mailer)

	email, err := reg.Get("email")
	require.NoError(t, err)
	res, err := s.RunAction(context.Background(), email, 2)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "cyd@example.com")

	_, err = s.RunAction(context.Background(), email, 9)
	assert.ErrorIs(t, err, core.ErrRowOutOfRange)
}

func TestDoPassesFilteredRows(t *testing.T) {
	s := openSession(t, newStore(t))
	require.NoError(t, s.SetCriteria(core.Criteria{
		Statuses: core.NewStringSet("Paid"),
		Products: core.NewStringSet("Audit"),
	}))

	var got []core.InvoiceRecord
	require.NoError(t, s.Do(context.Background(), func(_ context.Context, rows []core.InvoiceRecord) error {
		got = rows
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].CustomerName)
}

func TestClose(t *testing.T) {
	s := openSession(t, newStore(t))
	s.Close()

	assert.True(t, s.Closed())
	_, err := s.View()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Open(context.Background(), "Sheet1"), ErrClosed)
}

func TestUnconnectedSession(t *testing.T) {
	s := New("x", nil)
	assert.ErrorIs(t, s.Open(context.Background(), "Sheet1"), ErrNotConnected)
	_, err := s.Worksheets(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, s.Connect(context.Background(), newSvc(newStore(t)), "svc@example.iam", "Sheet1"))
	assert.Equal(t, "svc@example.iam", s.Account())
	names, err := s.Worksheets(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Sheet1", "Archive"}, names)
}
