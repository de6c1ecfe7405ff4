// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// filter criteria from the dashboard query string, the add-invoice form and
// the edit grid.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"invoicedash/internal/core"
)

// maxBodyBytes caps form and JSON bodies. Credential uploads use their own
// multipart limit.
const maxBodyBytes = 1 << 20

// ErrBadRow is returned for a row reference that is not a number.
var ErrBadRow = errors.New("invalid row reference")

// ParseCriteria builds the filter from the dashboard's filter form. Bounds
// left empty fall back to the span of the whole table. An empty status or
// product selection stays empty and selects nothing.
func ParseCriteria(q url.Values, defaults core.Criteria) (core.Criteria, error) {
	c := core.Criteria{
		Statuses: core.NewStringSet(sanitizeAll(q["status"])...),
		Products: core.NewStringSet(sanitizeAll(q["product"])...),
		Search:   sanitizeInput(q.Get("q")),
	}

	from, err := parseOptionalDate(q.Get("from"))
	if err != nil {
		return core.Criteria{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseOptionalDate(q.Get("to"))
	if err != nil {
		return core.Criteria{}, fmt.Errorf("to: %w", err)
	}

	if from.IsZero() && to.IsZero() {
		c.DateRange = defaults.DateRange
		return c, nil
	}
	rng := core.DateRange{From: from, To: to}
	if defaults.DateRange != nil {
		if rng.From.IsZero() {
			rng.From = defaults.DateRange.From
		}
		if rng.To.IsZero() {
			rng.To = defaults.DateRange.To
		}
	}
	if rng.From.IsZero() {
		rng.From = rng.To
	}
	if rng.To.IsZero() {
		rng.To = rng.From
	}
	c.DateRange = &rng
	return c, nil
}

func parseOptionalDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, core.ErrInvalidDate
	}
	return core.DateOf(t), nil
}

// ParseNewInvoice reads the add-invoice form from a parsed body.
func ParseNewInvoice(p *RequestBodyParser) core.NewInvoice {
	return core.NewInvoice{
		CustomerName:  p.Get("customer_name"),
		CustomerEmail: p.Get("customer_email"),
		Product:       p.Get("product"),
		Description:   p.Get("description"),
		Price:         p.Get("price"),
		InvoiceLink:   p.Get("invoice_link"),
		Status:        p.Get("status"),
		DateCreated:   p.Get("date_created"),
	}
}

// editField names one cell of the edit grid: "<field>-<row>".
func editField(field string, row int) string {
	return field + "-" + strconv.Itoa(row)
}

// ParseRowEdits reads the edit grid. Every "row" value names a full-table
// position whose cells are posted as "<field>-<row>".
func ParseRowEdits(form url.Values) ([]core.RowEdit, error) {
	edits := make([]core.RowEdit, 0, len(form["row"]))
	for _, v := range form["row"] {
		row, err := ParseRow(v)
		if err != nil {
			return nil, err
		}
		get := func(field string) string { return sanitizeInput(form.Get(editField(field, row))) }
		edits = append(edits, core.RowEdit{
			Row:           row,
			CustomerName:  get("customer_name"),
			CustomerEmail: get("customer_email"),
			Product:       get("product"),
			Description:   get("description"),
			Price:         get("price"),
			InvoiceLink:   get("invoice_link"),
			Status:        get("status"),
			DateCreated:   get("date_created"),
		})
	}
	return edits, nil
}

// ParseRow parses a zero-based row position.
func ParseRow(s string) (int, error) {
	row, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || row < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadRow, s)
	}
	return row, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed request")
	}
	return nil
}
