package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"invoicedash/internal/core"
	"invoicedash/internal/notify"
	"invoicedash/internal/services"
	"invoicedash/internal/session"
	"invoicedash/internal/sheets/memory"
)

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

var testRows = [][]string{
	{"Ada", "ada@example.com", "Audit", "Q2", "100", "https://x/1", "Paid", "2025-06-25"},
	{"Bob", "bob@example.com", "Consulting", "2 days", "50", "https://x/2", "Pending", "2025-06-15"},
	{"Cyd", "cyd@example.com", "Audit", "Q1", "25", "https://x/3", "Overdue", "2025-05-01"},
}

type testEnv struct {
	srv    *Server
	store  *memory.Store
	mailer *notify.LogMailer
	cookie *http.Cookie
}

func newTestEnv(t *testing.T, settings Settings) *testEnv {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if err := store.WriteAll(ctx, "Sheet1", core.Columns, testRows); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteAll(ctx, "Archive", core.Columns, nil); err != nil {
		t.Fatal(err)
	}

	mailer := notify.NewLogMailer(nil)
	svc := services.NewInvoiceService(store, services.WithClock(func() time.Time { return testNow }))
	srv := NewServer(":0", Dependencies{
		Sessions: session.NewManager(time.Hour, 0, nil),
		Default:  svc,
		Mailer:   mailer,
		Settings: settings,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, mailer: mailer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c
		}
	}
	return rr
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return e.do(req)
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader("worksheet=Sheet1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := e.do(req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("connect status=%d body=%s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("connect redirect=%q", loc)
	}
	if e.cookie == nil {
		t.Fatal("session cookie not set")
	}
}

func (e *testEnv) sheet(t *testing.T) core.RawTable {
	t.Helper()
	raw, err := e.store.ReadAll(context.Background(), "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Settings{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
	if rr := env.get("/metrics"); !strings.Contains(rr.Body.String(), "invoices_appended_total 0") {
		t.Errorf("metrics missing counter:\n%s", rr.Body.String())
	}
}

func TestIndexListsWorksheets(t *testing.T) {
	env := newTestEnv(t, Settings{AllowUpload: true})

	rr := env.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Sheet1", "Archive", `name="credentials"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
}

func TestDashboardRequiresOpenWorksheet(t *testing.T) {
	env := newTestEnv(t, Settings{})

	rr := env.get("/dashboard")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/view", nil)
	req.Header.Set("HX-Request", "true")
	rr = env.do(req)
	if rr.Header().Get("HX-Redirect") != "/" {
		t.Errorf("htmx request not redirected, headers=%v", rr.Header())
	}
}

func TestConnectAndDashboard(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	rr := env.get("/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Ada", "Bob", "Cyd", "$175.00", "Remind all overdue"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestConnectUnknownWorksheet(t *testing.T) {
	env := newTestEnv(t, Settings{})

	rr := env.postForm("/connect", url.Values{"worksheet": {"Nope"}})
	if rr.Code < 400 {
		t.Fatalf("status=%d, want an error", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") == "" {
		t.Error("error notification not triggered")
	}
}

func TestConnectWithoutStore(t *testing.T) {
	srv := NewServer(":0", Dependencies{Settings: Settings{AllowUpload: true}})
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader("worksheet=Sheet1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", rr.Code)
	}
}

func TestCredentialUploadDisabled(t *testing.T) {
	env := newTestEnv(t, Settings{AllowUpload: false})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("worksheet", "Sheet1")
	_ = mw.WriteField("spreadsheet_id", "abc")
	fw, _ := mw.CreateFormFile("credentials", "sa.json")
	_, _ = fw.Write([]byte(`{"type":"service_account"}`))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/connect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := env.do(req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
}

func TestFilterView(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	q := url.Values{
		"filter":  {"1"},
		"status":  {"Paid", "Overdue"},
		"product": {"Audit"},
	}
	rr := env.get("/ui/view?" + q.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Ada") || !strings.Contains(body, "Cyd") {
		t.Error("matching rows missing")
	}
	if strings.Contains(body, "Bob") {
		t.Error("Pending row shown")
	}
	if !strings.Contains(body, "$125.00") {
		t.Error("revenue not recomputed over the view")
	}

	rr = env.get("/ui/view?filter=1&from=bogus")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date status=%d", rr.Code)
	}

	rr = env.postForm("/ui/filters/reset", nil)
	if rr.Header().Get("HX-Redirect") != "/dashboard" {
		t.Errorf("reset headers=%v", rr.Header())
	}
	if body := env.get("/ui/view").Body.String(); !strings.Contains(body, "Bob") {
		t.Error("reset did not select every row")
	}
}

func TestAppendInvoice(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	form := url.Values{
		"customer_name":  {"Dee"},
		"customer_email": {"not-an-email"},
		"product":        {"Audit"},
		"description":    {"Q3"},
		"price":          {"10"},
		"invoice_link":   {"https://x/4"},
		"status":         {"Pending"},
	}
	rr := env.postForm("/invoices", form)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid email status=%d", rr.Code)
	}
	if len(env.sheet(t).Rows) != 3 {
		t.Fatal("invalid invoice was stored")
	}

	form.Set("customer_email", "dee@example.com")
	rr = env.postForm("/invoices", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{"invoices:changed", "form:reset", "show-notification"} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger %q missing %q", trigger, want)
		}
	}
	if ev := invoicesChangedOf(t, rr); ev.SheetRow != 5 || ev.Total != 4 {
		t.Errorf("invoices:changed = %+v, want sheet row 5 of 4 invoices", ev)
	}

	rows := env.sheet(t).Rows
	if len(rows) != 4 {
		t.Fatalf("rows=%d, want 4", len(rows))
	}
	if got := rows[3][7]; got != "2025-06-30" {
		t.Errorf("date defaulted to %q", got)
	}
	if !strings.Contains(env.get("/ui/view").Body.String(), "Dee") {
		t.Error("new invoice not in the view")
	}
}

func TestAppendInvoiceJSON(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	body := `{"customer_name":"Eve","customer_email":"eve@example.com","product":"Audit",` +
		`"description":"Q3","price":42.5,"invoice_link":"https://x/5","status":"Paid","date_created":"2025-06-01"}`
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type=%q", ct)
	}

	var got appendedInvoice
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := appendedInvoice{SheetRow: 5, CustomerName: "Eve", Product: "Audit", Price: "42.5", Status: "Paid", DateCreated: "2025-06-01"}
	if got != want {
		t.Errorf("reply = %+v, want %+v", got, want)
	}
	if rows := env.sheet(t).Rows; len(rows) != 4 || rows[3][0] != "Eve" {
		t.Errorf("rows=%v", rows)
	}
}

func TestSaveEdits(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	form := url.Values{"row": {"1"}}
	for field, v := range map[string]string{
		"customer_name":  "Bob",
		"customer_email": "bob@example.com",
		"product":        "Consulting",
		"description":    "2 days",
		"price":          "75",
		"invoice_link":   "https://x/2",
		"status":         "Paid",
		"date_created":   "2025-06-15",
	} {
		form.Set(editField(field, 1), v)
	}

	rr := env.postForm("/invoices/edits", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	raw := env.sheet(t)
	if len(raw.Rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(raw.Rows))
	}
	if raw.Rows[1][4] != "75" || raw.Rows[1][6] != "Paid" {
		t.Errorf("row not updated: %v", raw.Rows[1])
	}
	if raw.Rows[0][0] != "Ada" || raw.Rows[2][0] != "Cyd" {
		t.Errorf("untouched rows changed: %v", raw.Rows)
	}

	rr = env.postForm("/invoices/edits", url.Values{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty grid status=%d", rr.Code)
	}

	form.Set(editField("price", 1), "-3")
	rr = env.postForm("/invoices/edits", form)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative price status=%d", rr.Code)
	}
	if env.sheet(t).Rows[1][4] != "75" {
		t.Error("rejected edit reached the store")
	}
}

func TestRowActions(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	rr := env.postForm("/invoices/1/actions/email", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("email status=%d body=%s", rr.Code, rr.Body.String())
	}
	sent := env.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "bob@example.com" {
		t.Fatalf("sent=%v", sent)
	}

	req := httptest.NewRequest(http.MethodPost, "/invoices/0/actions/pdf", nil)
	rr = env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("pdf status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type=%q", ct)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "invoice-2.pdf") {
		t.Errorf("Content-Disposition=%q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}

	if rr := env.postForm("/invoices/0/actions/fax", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown action status=%d", rr.Code)
	}
	if rr := env.postForm("/invoices/9/actions/email", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("row out of range status=%d", rr.Code)
	}
	if rr := env.postForm("/invoices/x/actions/email", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad row status=%d", rr.Code)
	}
}

func TestRemindOverdue(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	rr := env.postForm("/invoices/remind-overdue", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	sent := env.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "cyd@example.com" {
		t.Fatalf("sent=%v", sent)
	}
	if !strings.Contains(rr.Body.String(), "cyd@example.com") {
		t.Error("outcome not reported")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Sent 1 of 1") {
		t.Errorf("HX-Trigger=%q", rr.Header().Get("HX-Trigger"))
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	rr := env.get("/export/csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "invoices.csv") {
		t.Errorf("Content-Disposition=%q", rr.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "Customer name,") {
		t.Errorf("csv=%q", rr.Body.String())
	}

	if rr := env.get("/export/docx"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown format status=%d", rr.Code)
	}
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(t, Settings{})
	env.connect(t)

	rr := env.postForm("/disconnect", nil)
	if rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("headers=%v", rr.Header())
	}
	if env.srv.sessions.Len() != 0 {
		t.Errorf("sessions=%d after disconnect", env.srv.sessions.Len())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.ErrInvalidEmail, http.StatusUnprocessableEntity},
		{"schema", &core.SchemaError{Missing: []string{"Price"}}, http.StatusUnprocessableEntity},
		{"store write", &core.StoreWriteError{Err: context.Canceled}, http.StatusBadGateway},
		{"closed session", session.ErrClosed, http.StatusConflict},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"upload disabled", errUploadDisabled, http.StatusForbidden},
		{"missing recipient", &core.TransportError{Recipient: "Ada", Err: core.ErrMissingRecipient}, http.StatusUnprocessableEntity},
		{"relay down", &core.TransportError{Recipient: "Ada", Err: context.Canceled}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _, _ := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
