package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"invoicedash/internal/core"
	"invoicedash/internal/export"
	"invoicedash/internal/log"
	"invoicedash/internal/notify"
	"invoicedash/internal/services"
)

var errNothingToSave = errors.New("no rows to save")

// handleAppendInvoice validates the add-invoice form and appends one row.
func (s *Server) handleAppendInvoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}

	rec, err := sess.Append(r.Context(), ParseNewInvoice(p))
	if err != nil {
		s.writeError(w, r, log.OpAppend, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.appends, 1)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Invoice appended",
		log.FieldWorksheet, sess.Worksheet(),
		log.FieldRow, rec.Row+2,
		log.FieldCustomer, rec.CustomerName)

	if p.IsJSON() {
		NewHTMXResponse().Status(http.StatusCreated).JSON(appendedOf(rec)).Write(w)
		return
	}
	v, _ := sess.View()
	NewHTMXResponse().
		TriggerInvoicesChanged(v, rec.Row+2).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Invoice for %s added.", rec.CustomerName)).
		Write(w)
}

// appendedInvoice is the reply to a JSON append.
type appendedInvoice struct {
	SheetRow     int    `json:"sheetRow"`
	CustomerName string `json:"customerName"`
	Product      string `json:"product"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	DateCreated  string `json:"dateCreated"`
}

func appendedOf(r core.InvoiceRecord) appendedInvoice {
	return appendedInvoice{
		SheetRow:     r.Row + 2,
		CustomerName: r.CustomerName,
		Product:      r.Product,
		Price:        r.PriceText(),
		Status:       string(r.Status),
		DateCreated:  r.DateText(),
	}
}

// handleSaveEdits overwrites the worksheet with the edit grid applied.
func (s *Server) handleSaveEdits(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}
	if b := ParseFormOrFail(r); b != nil {
		b.Write(w)
		return
	}

	edits, err := ParseRowEdits(r.PostForm)
	if err == nil && len(edits) == 0 {
		err = errNothingToSave
	}
	if err != nil {
		s.writeError(w, r, log.OpReplace, err)
		return
	}

	if err := sess.SaveEdits(r.Context(), edits); err != nil {
		s.writeError(w, r, log.OpReplace, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.saves, 1)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Edits saved",
		log.FieldWorksheet, sess.Worksheet(),
		log.FieldRowCount, len(edits))

	v, _ := sess.View()
	NewHTMXResponse().
		TriggerInvoicesChanged(v, 0).
		TriggerSuccessNotification(fmt.Sprintf("Saved %d row(s).", len(edits))).
		Write(w)
}

// handleRowAction runs a registered row action. Actions producing a file
// answer with the download, the others with a notification.
func (s *Server) handleRowAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}

	action, err := s.actions.Get(r.PathValue("action"))
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}
	row, err := ParseRow(r.PathValue("row"))
	if err != nil {
		s.writeError(w, r, action.Name(), err)
		return
	}

	res, err := sess.RunAction(r.Context(), action, row)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.actionsFailed, 1)
		if _, ok := action.(services.EmailAction); ok {
			atomic.AddInt64(&s.appMetrics.emailsFailed, 1)
		}
		s.writeError(w, r, action.Name(), err)
		return
	}
	if _, ok := action.(services.EmailAction); ok {
		atomic.AddInt64(&s.appMetrics.emailsSent, 1)
	}

	if len(res.Body) > 0 {
		NewHTMXResponse().Download(res.Filename, res.ContentType, res.Body).Write(w)
		return
	}
	NewHTMXResponse().TriggerSuccessNotification(res.Message).Write(w)
}

type remindersData struct {
	Results []notify.Result
	Sent    int
	Failed  int
}

// handleRemindOverdue emails every overdue invoice in the current view and
// reports each outcome.
func (s *Server) handleRemindOverdue(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}

	var results []notify.Result
	err := sess.Do(r.Context(), func(ctx context.Context, rows []core.InvoiceRecord) error {
		results = services.RemindOverdue(ctx, s.mailer, rows, s.settings.MailConcurrency)
		return nil
	})
	if err != nil {
		s.writeError(w, r, log.OpSend, err)
		return
	}

	failed := notify.Failed(results)
	data := remindersData{Results: results, Sent: len(results) - failed, Failed: failed}
	atomic.AddInt64(&s.appMetrics.emailsSent, int64(data.Sent))
	atomic.AddInt64(&s.appMetrics.emailsFailed, int64(data.Failed))

	log.FromContext(r.Context()).InfoContext(r.Context(), "Overdue reminders sent",
		log.FieldWorksheet, sess.Worksheet(),
		"sent", data.Sent,
		"failed", data.Failed)

	b := NewHTMXResponse().TriggerRemindersSent(data.Sent, len(results))
	s.renderWith(w, r, b, "reminders", data)
}

// handleExport downloads the current view in the requested format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}

	format, found := export.Lookup(r.PathValue("format"))
	if !found {
		NotFoundError("Unknown export format").Write(w)
		return
	}

	var buf bytes.Buffer
	var count int
	err := sess.Do(r.Context(), func(_ context.Context, rows []core.InvoiceRecord) error {
		count = len(rows)
		return format.Write(&buf, rows)
	})
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)

	log.FromContext(r.Context()).InfoContext(r.Context(), "View exported",
		log.FieldFormat, format.Name,
		log.FieldRowCount, count)
	NewHTMXResponse().Download(format.Filename, format.ContentType, buf.Bytes()).Write(w)
}
