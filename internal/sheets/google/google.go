package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"invoicedash/internal/core"
	ports "invoicedash/internal/sheets"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn is the rightmost column a worksheet can have.
const lastColumn = "ZZZ"

// valueInputOption makes written cells behave as if typed by a user, so
// numbers and dates keep their spreadsheet types.
const valueInputOption = "USER_ENTERED"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	account       string
}

// Ensure interface conformance
var _ ports.RecordStore = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID and one of GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return NewFromCredentials(ctx, spreadsheetID, creds)
}

// NewFromCredentials creates a client for spreadsheetID authenticated with a
// service account key. The key is parsed strictly before use.
func NewFromCredentials(ctx context.Context, spreadsheetID string, credentials []byte) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	conf, sa, err := jwtConfig(credentials)
	if err != nil {
		return nil, err
	}

	// The token source and the API calls share one pooled transport.
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(conf.Client(tokenCtx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"client_email", sa.ClientEmail)
	c := NewWithService(svc, spreadsheetID)
	c.account = sa.ClientEmail
	return c, nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// Account returns the service account email the client authenticates as.
func (c *Client) Account() string { return c.account }

// SpreadsheetID returns the spreadsheet the client reads and writes.
func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

// credentialsFromEnv reads the service account key from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ListWorksheets returns the worksheet titles in spreadsheet order.
func (c *Client) ListWorksheets(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields(googleapi.Field("sheets.properties.title")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	names := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			names = append(names, sh.Properties.Title)
		}
	}
	return names, nil
}

// ReadAll reads the populated area of a worksheet. The first row is the
// header; rows come back as displayed, trailing empty cells trimmed.
func (c *Client) ReadAll(ctx context.Context, worksheet string) (core.RawTable, error) {
	if c.svc == nil {
		return core.RawTable{}, errors.New("sheets service not initialized")
	}
	rng := sheetRange(worksheet, "")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return core.RawTable{}, nil
	}
	rt := core.RawTable{
		Header: toStrings(resp.Values[0]),
		Rows:   make([][]string, 0, len(resp.Values)-1),
	}
	for _, row := range resp.Values[1:] {
		rt.Rows = append(rt.Rows, toStrings(row))
	}
	return rt, nil
}

// WriteAll writes header and rows from A1, then clears what the worksheet
// held below and to the right of them. A failed write leaves the worksheet
// untouched; a failed clear leaves only stale cells past the new data.
func (c *Client) WriteAll(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}
	values := make([][]any, 0, len(rows)+1)
	values = append(values, padCells(header, width))
	for _, r := range rows {
		values = append(values, padCells(r, width))
	}

	start := sheetRange(worksheet, "A1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}

	stale := []string{
		sheetRange(worksheet, fmt.Sprintf("A%d:%s", len(values)+1, lastColumn)),
		sheetRange(worksheet, columnName(width+1)+"1:"+lastColumn),
	}
	_, err = c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: stale}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear past written data in %s: %w", worksheet, err)
	}
	return nil
}

// AppendRow inserts row after the last populated row of the worksheet.
func (c *Client) AppendRow(ctx context.Context, worksheet string, row []string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := sheetRange(worksheet, "A1")
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{toCells(row)}}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", worksheet, err)
	}
	return nil
}

// sheetRange builds an A1 range for worksheet, quoting the title.
func sheetRange(worksheet, cells string) string {
	quoted := "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// columnName returns the A1 letters of the 1-based column n.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// padCells converts in to cells, blank-filled up to width so shorter rows
// overwrite every cell of the written area.
func padCells(in []string, width int) []any {
	out := make([]any, width)
	for i := range out {
		out[i] = ""
		if i < len(in) {
			out[i] = in[i]
		}
	}
	return out
}

func toCells(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
