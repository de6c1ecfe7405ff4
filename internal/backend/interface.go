package backend

import (
	"context"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/cache"
	"invoicedash/internal/sheets"
	"invoicedash/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the record store and what was built around it.
type BackendResult struct {
	Store sheets.RecordStore

	// Journal is set for the sqlite backend.
	Journal *storage.SQLiteRepository
	// Publisher is set when the sqlite backend could reach the broker.
	Publisher *amqp.Client
	// Cleaners are caches the caller should sweep periodically.
	Cleaners []cache.Cleaner
	// Account is the service account the sheets backend authenticates as.
	Account string

	Cleanup CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// ConnectSheets builds a sheets backend from uploaded credentials.
	ConnectSheets(ctx context.Context, spreadsheetID string, credentials []byte) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	DefaultWorksheet string

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CacheSize                int
	CacheTTL                 time.Duration

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
