package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"invoicedash/internal/core"
	"invoicedash/internal/export"
	"invoicedash/internal/notify"
)

// ActionResult is what a row action hands back to the caller. Body is set
// for actions that produce a download.
type ActionResult struct {
	Message     string
	Filename    string
	ContentType string
	Body        []byte
}

// RowAction is a command run against a single invoice.
type RowAction interface {
	Name() string
	Label() string
	Run(ctx context.Context, r core.InvoiceRecord) (ActionResult, error)
}

// Downloads reports whether a produces a file rather than a message.
func Downloads(a RowAction) bool {
	d, ok := a.(interface{ Downloads() bool })
	return ok && d.Downloads()
}

// ActionRegistry holds the row actions offered on the dashboard.
type ActionRegistry struct {
	actions map[string]RowAction
}

func NewActionRegistry(actions ...RowAction) *ActionRegistry {
	reg := &ActionRegistry{actions: make(map[string]RowAction, len(actions))}
	for _, a := range actions {
		reg.actions[a.Name()] = a
	}
	return reg
}

// DefaultActions returns the email and PDF row actions.
func DefaultActions(m notify.Mailer) *ActionRegistry {
	return NewActionRegistry(EmailAction{Mailer: m}, PDFAction{})
}

// Get returns the action registered under name.
func (r *ActionRegistry) Get(name string) (RowAction, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown row action %q", name)
	}
	return a, nil
}

// List returns the registered actions ordered by name.
func (r *ActionRegistry) List() []RowAction {
	out := make([]RowAction, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// EmailAction sends or resends the invoice email to the customer.
type EmailAction struct {
	Mailer notify.Mailer
}

func (EmailAction) Name() string  { return "email" }
func (EmailAction) Label() string { return "Send email" }

func (a EmailAction) Run(ctx context.Context, r core.InvoiceRecord) (ActionResult, error) {
	if err := notify.SendInvoice(ctx, a.Mailer, r); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Message: fmt.Sprintf("Email sent to %s", r.CustomerEmail)}, nil
}

// PDFAction renders the single-invoice PDF.
type PDFAction struct{}

func (PDFAction) Name() string    { return "pdf" }
func (PDFAction) Label() string   { return "Download PDF" }
func (PDFAction) Downloads() bool { return true }

func (PDFAction) Run(_ context.Context, r core.InvoiceRecord) (ActionResult, error) {
	var buf bytes.Buffer
	if err := export.WriteInvoicePDF(&buf, r); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{
		Message:     fmt.Sprintf("Invoice PDF for %s", r.CustomerName),
		Filename:    fmt.Sprintf("invoice-%d.pdf", r.Row+2),
		ContentType: "application/pdf",
		Body:        buf.Bytes(),
	}, nil
}

// OverdueReminders selects the invoices the bulk reminder goes to: unpaid
// records in the overdue aging bucket plus any record marked Overdue.
func OverdueReminders(rows []core.InvoiceRecord) []core.InvoiceRecord {
	var out []core.InvoiceRecord
	for _, r := range rows {
		aged := r.HasDate() && core.Classify(r.AgeDays) == core.BucketOverdue
		if r.Status == core.StatusOverdue || (aged && !r.IsPaid()) {
			out = append(out, r)
		}
	}
	return out
}

// RemindOverdue emails every overdue invoice of rows with bounded fan-out.
func RemindOverdue(ctx context.Context, m notify.Mailer, rows []core.InvoiceRecord, concurrency int) []notify.Result {
	return notify.SendBulk(ctx, m, OverdueReminders(rows), concurrency)
}
