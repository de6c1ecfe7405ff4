// Package notify sends invoice emails.
//
// A Mailer delivers one Message. SMTPMailer talks to a real relay; LogMailer
// only records what would have been sent and is used when no SMTP host is
// configured. Every failure is reported as a *core.TransportError naming the
// recipient.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"text/template"

	"invoicedash/internal/core"
	"invoicedash/internal/log"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings configures the SMTP transport.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMailer returns an SMTP mailer, or a log-only mailer when no host is set.
func NewMailer(s Settings, logger *log.Logger) Mailer {
	if strings.TrimSpace(s.Host) == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(s)
}

var invoiceBody = template.Must(template.New("invoice").Parse(`Hello {{.Name}},

Here are the details of your invoice.

Product:     {{.Product}}
Description: {{.Description}}
Amount:      {{.Price}}
Status:      {{.Status}}
Issued:      {{.Date}}

You can view the invoice here: {{.Link}}

Thank you for your business.
`))

type invoiceView struct {
	Name, Product, Description, Price, Status, Date, Link string
}

// InvoiceMessage builds the email for one invoice.
func InvoiceMessage(r core.InvoiceRecord) (Message, error) {
	to := strings.TrimSpace(r.CustomerEmail)
	if to == "" {
		return Message{}, &core.TransportError{Recipient: r.CustomerName, Err: core.ErrMissingRecipient}
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return Message{}, &core.TransportError{Recipient: to, Err: fmt.Errorf("invalid address: %w", err)}
	}

	price := r.PriceText()
	if r.HasPrice() {
		price = "$" + r.Price.StringFixed(2)
	}
	date := r.DateText()
	if date == "" {
		date = "unknown"
	}

	var body bytes.Buffer
	err := invoiceBody.Execute(&body, invoiceView{
		Name:        r.CustomerName,
		Product:     r.Product,
		Description: r.Description,
		Price:       price,
		Status:      string(r.Status),
		Date:        date,
		Link:        r.InvoiceLink,
	})
	if err != nil {
		return Message{}, &core.TransportError{Recipient: to, Err: err}
	}

	subject := fmt.Sprintf("Invoice for %s", r.Product)
	if r.Status == core.StatusOverdue {
		subject = fmt.Sprintf("Reminder: overdue invoice for %s", r.Product)
	}
	return Message{To: to, Subject: subject, Body: body.String()}, nil
}

// SendInvoice builds and sends the email for one invoice.
func SendInvoice(ctx context.Context, m Mailer, r core.InvoiceRecord) error {
	msg, err := InvoiceMessage(r)
	if err != nil {
		return err
	}
	if err := m.Send(ctx, msg); err != nil {
		var te *core.TransportError
		if errors.As(err, &te) {
			return err
		}
		return &core.TransportError{Recipient: msg.To, Err: err}
	}
	return nil
}
