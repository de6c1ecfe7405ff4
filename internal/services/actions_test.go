package services

import (
	"bytes"
	"context"
	"testing"

	"invoicedash/internal/core"
	"invoicedash/internal/log"
	"invoicedash/internal/notify"
)

func loadSeeded(t *testing.T) *core.Table {
	t.Helper()
	table, err := newService(seededStore(t)).Load(context.Background(), "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestActionRegistry(t *testing.T) {
	reg := DefaultActions(notify.NewLogMailer(log.Discard()))

	list := reg.List()
	if len(list) != 2 || list[0].Name() != "email" || list[1].Name() != "pdf" {
		t.Fatalf("List() = %v", list)
	}
	if _, err := reg.Get("fax"); err == nil {
		t.Error("expected error for unknown action")
	}
	if Downloads(list[0]) || !Downloads(list[1]) {
		t.Error("only the pdf action downloads")
	}
}

func TestEmailAction(t *testing.T) {
	mailer := notify.NewLogMailer(log.Discard())
	reg := DefaultActions(mailer)
	table := loadSeeded(t)

	action, err := reg.Get("email")
	if err != nil {
		t.Fatal(err)
	}
	res, err := action.Run(context.Background(), table.Records[1])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Message != "Email sent to bob@example.com" {
		t.Errorf("Message = %q", res.Message)
	}
	if sent := mailer.Sent(); len(sent) != 1 || sent[0].To != "bob@example.com" {
		t.Errorf("Sent() = %+v", sent)
	}
}

func TestPDFAction(t *testing.T) {
	table := loadSeeded(t)
	res, err := PDFAction{}.Run(context.Background(), table.Records[2])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ContentType != "application/pdf" || res.Filename != "invoice-4.pdf" {
		t.Errorf("unexpected result %+v", res)
	}
	if !bytes.HasPrefix(res.Body, []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestOverdueReminders(t *testing.T) {
	table := loadSeeded(t)
	// Bob is 60 days old and Pending, Cyd is marked Overdue, Ada is fresh and Paid.
	got := OverdueReminders(table.Records)
	if len(got) != 2 || got[0].CustomerName != "Bob" || got[1].CustomerName != "Cyd" {
		t.Fatalf("OverdueReminders() = %+v", got)
	}

	mailer := notify.NewLogMailer(log.Discard())
	results := RemindOverdue(context.Background(), mailer, table.Records, 2)
	if len(results) != 2 || notify.Failed(results) != 0 {
		t.Errorf("RemindOverdue() = %+v", results)
	}
}
