package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"invoicedash/internal/core"
	"invoicedash/internal/session"
)

func TestHTMXResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		JSON(map[string]int{"sheetRow": 5}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != `{"sheetRow":5}` {
		t.Errorf("Body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	NewHTMXResponse().JSON(make(chan int)).Write(w)
	if w.Code != http.StatusInternalServerError || w.Body.Len() != 0 {
		t.Errorf("unencodable value: status=%d body=%q", w.Code, w.Body.String())
	}
}

func invoicesChangedOf(t *testing.T, w *httptest.ResponseRecorder) InvoicesChanged {
	t.Helper()
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger: %v", err)
	}
	var ev InvoicesChanged
	if err := json.Unmarshal(triggers["invoices:changed"], &ev); err != nil {
		t.Fatalf("invoices:changed payload: %v", err)
	}
	return ev
}

func TestHTMXResponseBuilder_InvoicesChanged(t *testing.T) {
	table, err := core.Load(core.RawTable{
		Header: core.Columns,
		Rows: [][]string{
			{"Ada", "ada@example.com", "Audit", "Q2", "100", "https://x/1", "Paid", "2025-06-25"},
			{"Bob", "bob@example.com", "Consulting", "2 days", "50", "https://x/2", "Pending", "2025-06-15"},
			{"Cyd", "cyd@example.com", "Audit", "Q1", "25", "https://x/3", "Overdue", "2025-05-01"},
		},
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	v := session.View{Worksheet: "Sheet1", Loaded: true, Table: table, Rows: table.Records[:2]}

	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerInvoicesChanged(v, 4).
		TriggerFormReset().
		TriggerSuccessNotification("Invoice for Cyd added.").
		Write(w)

	want := InvoicesChanged{Worksheet: "Sheet1", Visible: 2, Total: 3, SheetRow: 4}
	if got := invoicesChangedOf(t, w); got != want {
		t.Errorf("invoices:changed = %+v, want %+v", got, want)
	}
	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"form:reset"`, `"show-notification"`, `"type":"success"`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}

	// A full overwrite names no single row.
	w = httptest.NewRecorder()
	NewHTMXResponse().TriggerInvoicesChanged(v, 0).Write(w)
	if strings.Contains(w.Header().Get("HX-Trigger"), "sheetRow") {
		t.Errorf("overwrite payload carries a row: %s", w.Header().Get("HX-Trigger"))
	}
}

func TestHTMXResponseBuilder_RemindersSent(t *testing.T) {
	tests := []struct {
		name        string
		sent, total int
		wantType    string
		wantMessage string
	}{
		{"all sent", 3, 3, "success", "Sent 3 of 3 reminder(s)."},
		{"some failed", 1, 3, "warning", "Sent 1 of 3 reminder(s)."},
		{"nothing due", 0, 0, "info", "No overdue invoices in the current view."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHTMXResponse().TriggerRemindersSent(tt.sent, tt.total).Write(w)

			var triggers map[string]map[string]any
			if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
				t.Fatal(err)
			}
			n := triggers["show-notification"]
			if n["type"] != tt.wantType || n["message"] != tt.wantMessage {
				t.Errorf("notification = %v, want %s %q", n, tt.wantType, tt.wantMessage)
			}
		})
	}
}

func TestHTMXResponseBuilder_Download(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Download("invoice-3.pdf", "application/pdf", []byte("%PDF-1.3")).Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="invoice-3.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "%PDF-1.3" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestHTMXResponseBuilder_Redirect(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Redirect("/dashboard").Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/dashboard" {
		t.Errorf("HX-Redirect = %q", got)
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Status(http.StatusCreated).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid input</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Resource not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error">Resource not found</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestNotificationTypes(t *testing.T) {
	tests := []struct {
		notifType NotificationType
		want      string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewHTMXResponse().
			TriggerNotification(tt.notifType, "test", 1000).
			Write(w)

		trigger := w.Header().Get("HX-Trigger")
		if !strings.Contains(trigger, `"type":"`+tt.want+`"`) {
			t.Errorf("Notification type %q not found in trigger: %s", tt.want, trigger)
		}
	}
}
