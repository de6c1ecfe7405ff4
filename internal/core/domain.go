package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Well-known invoice statuses. Status is open text: other values pass
// through filters untouched but never count toward a named subtotal.
const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

// Column headers of an invoice worksheet, in storage order.
const (
	ColCustomerName  = "Customer name"
	ColCustomerEmail = "Customer email"
	ColProduct       = "Product"
	ColDescription   = "Product Description"
	ColPrice         = "Price"
	ColInvoiceLink   = "Invoice Link"
	ColStatus        = "Status"
	ColDateCreated   = "Date Created"
)

// Columns is the fixed, ordered header every worksheet must carry.
var Columns = []string{
	ColCustomerName,
	ColCustomerEmail,
	ColProduct,
	ColDescription,
	ColPrice,
	ColInvoiceLink,
	ColStatus,
	ColDateCreated,
}

// KnownStatuses lists the statuses offered when creating an invoice.
var KnownStatuses = []Status{StatusPending, StatusPaid, StatusOverdue}

type (
	Status string

	Date struct {
		time.Time
	}

	InvoiceRecord struct {
		Row           int // position in the full table, zero-based
		CustomerName  string
		CustomerEmail string
		Product       string
		Description   string
		Price         decimal.Decimal
		InvoiceLink   string
		Status        Status
		DateCreated   Date // zero when the source cell could not be parsed
		AgeDays       int  // meaningful only when HasDate is true

		// Raw cell text kept for cells that failed to parse, so a full
		// overwrite writes the original content back.
		rawPrice string
		rawDate  string
	}

	// NewInvoice holds the fields of the "add invoice" form.
	NewInvoice struct {
		CustomerName  string
		CustomerEmail string
		Product       string
		Description   string
		Price         string
		InvoiceLink   string
		Status        string
		DateCreated   string // YYYY-MM-DD, empty means today
	}
)

var (
	ErrEmptyCustomerName = errors.New("empty customer name")
	ErrInvalidEmail      = errors.New("invalid customer email")
	ErrEmptyProduct      = errors.New("empty product")
	ErrEmptyDescription  = errors.New("empty product description")
	ErrEmptyInvoiceLink  = errors.New("empty invoice link")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrNegativePrice     = errors.New("price must not be negative")
	ErrUnknownStatus     = errors.New("status must be one of Pending, Paid, Overdue")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyWorksheet    = errors.New("empty worksheet name")
	ErrRowOutOfRange     = errors.New("row out of range")
	ErrDuplicateRowEdit  = errors.New("row edited more than once")
	ErrUnknownWriteKind  = errors.New("unknown write command")
	ErrMissingRecipient  = errors.New("invoice has no customer email")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MonthLabel returns the YYYY-MM label used for monthly grouping.
func (d Date) MonthLabel() string {
	return d.Format("2006-01")
}

const secondsPerDay = 24 * 60 * 60

// DaysSince returns the whole days elapsed from d to today. Both dates are
// midnight UTC, so the division is exact for any span.
func (d Date) DaysSince(today Date) int {
	return int((today.Unix() - d.Unix()) / secondsPerDay)
}

// HasDate reports whether the record carries a usable creation date.
func (r InvoiceRecord) HasDate() bool {
	return !r.DateCreated.IsZero()
}

// IsPaid reports whether the record's status is exactly "Paid".
func (r InvoiceRecord) IsPaid() bool {
	return r.Status == StatusPaid
}

// HasPrice reports whether the price cell parsed.
func (r InvoiceRecord) HasPrice() bool {
	return r.rawPrice == ""
}

// PriceText is the price as written back to the store.
func (r InvoiceRecord) PriceText() string {
	if r.rawPrice != "" {
		return r.rawPrice
	}
	return r.Price.String()
}

// DateText is the creation date as written back to the store.
func (r InvoiceRecord) DateText() string {
	if r.rawDate != "" {
		return r.rawDate
	}
	return r.DateCreated.String()
}

// Values returns the record's cells in Columns order.
func (r InvoiceRecord) Values() []string {
	return []string{
		r.CustomerName,
		r.CustomerEmail,
		r.Product,
		r.Description,
		r.PriceText(),
		r.InvoiceLink,
		string(r.Status),
		r.DateText(),
	}
}

// IsKnownStatus reports whether s is one of the three well-known statuses.
func IsKnownStatus(s Status) bool {
	for _, k := range KnownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// Validate checks the form and converts it to a record dated relative to today.
func (n NewInvoice) Validate(today Date) (InvoiceRecord, error) {
	rec := InvoiceRecord{
		CustomerName:  strings.TrimSpace(n.CustomerName),
		CustomerEmail: strings.TrimSpace(n.CustomerEmail),
		Product:       strings.TrimSpace(n.Product),
		Description:   strings.TrimSpace(n.Description),
		InvoiceLink:   strings.TrimSpace(n.InvoiceLink),
		Status:        Status(strings.TrimSpace(n.Status)),
	}
	if rec.CustomerName == "" {
		return InvoiceRecord{}, ErrEmptyCustomerName
	}
	if _, err := mail.ParseAddress(rec.CustomerEmail); err != nil {
		return InvoiceRecord{}, ErrInvalidEmail
	}
	if rec.Product == "" {
		return InvoiceRecord{}, ErrEmptyProduct
	}
	if rec.Description == "" {
		return InvoiceRecord{}, ErrEmptyDescription
	}
	if rec.InvoiceLink == "" {
		return InvoiceRecord{}, ErrEmptyInvoiceLink
	}
	price, err := ParsePrice(n.Price)
	if err != nil {
		return InvoiceRecord{}, err
	}
	rec.Price = price
	if !IsKnownStatus(rec.Status) {
		return InvoiceRecord{}, ErrUnknownStatus
	}

	rec.DateCreated = today
	if v := strings.TrimSpace(n.DateCreated); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return InvoiceRecord{}, ErrInvalidDate
		}
		rec.DateCreated = DateOf(t)
	}
	rec.AgeDays = rec.DateCreated.DaysSince(today)
	return rec, nil
}
