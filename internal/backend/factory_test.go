package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invoicedash/internal/config"
	"invoicedash/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:      "sqlite",
		DataDir:          "seed",
		DefaultWorksheet: "Invoices",
		SQLiteDBPath:     "/tmp/x.db",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if bc.Type != SQLiteBackend || bc.DataDirectory != "seed" || bc.DefaultWorksheet != "Invoices" {
		t.Errorf("unexpected config %+v", bc)
	}
	if bc.CacheSize != defaultCacheSize || bc.CacheTTL != defaultCacheTTL {
		t.Errorf("cache bounds not defaulted: %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "excel"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without spreadsheet", Config{Type: SheetsBackend}, true},
		{"sheets with spreadsheet", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id"}, false},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateListsBackendTypes(t *testing.T) {
	err := Config{Type: "csv"}.Validate()
	if err == nil || !strings.Contains(err.Error(), "memory, sheets, sqlite") {
		t.Errorf("Validate() error = %v, want the valid backend types listed", err)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	seed := "Customer name,Customer email,Product,Product Description,Price,Invoice Link,Status,Date Created\n" +
		"Ada,ada@example.com,Audit,Q2,100,https://x/1,Paid,2025-06-01\n"
	if err := os.WriteFile(filepath.Join(dir, "invoices.csv"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:             MemoryBackend,
		DataDirectory:    dir,
		DefaultWorksheet: "Sheet1",
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	raw, err := res.Store.ReadAll(context.Background(), "Sheet1")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(raw.Rows) != 1 || raw.Rows[0][0] != "Ada" {
		t.Errorf("unexpected rows %v", raw.Rows)
	}
	if len(res.ServiceOptions()) != 0 {
		t.Error("memory backend should not publish")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:             SQLiteBackend,
		SQLiteDBPath:     filepath.Join(t.TempDir(), "invoicedash.db"),
		DefaultWorksheet: "Sheet1",
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if res.Journal == nil || res.Publisher != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	raw, err := res.Store.ReadAll(context.Background(), "Sheet1")
	if err != nil {
		t.Fatalf("default worksheet missing: %v", err)
	}
	if len(raw.Header) != len(core.Columns) {
		t.Errorf("header = %v", raw.Header)
	}
}

func TestCreateSheetsBackendWithoutCredentials(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                SheetsBackend,
		GoogleSpreadsheetID: "sid",
	})
	if !errors.Is(err, ErrCredentialsRequired) {
		t.Errorf("CreateBackend() error = %v, want ErrCredentialsRequired", err)
	}
}
