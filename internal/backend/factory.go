package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/cache"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
	"invoicedash/internal/sheets"
	gsheet "invoicedash/internal/sheets/google"
	"invoicedash/internal/sheets/memory"
	"invoicedash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if config.DefaultWorksheet != "" {
		if err := repo.EnsureWorksheet(ctx, config.DefaultWorksheet); err != nil {
			repo.Close()
			return nil, err
		}
	}

	// AMQP is optional: without it writes are journaled but not announced.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store:     repo,
		Journal:   repo,
		Publisher: amqpClient,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := repo.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := Credentials(config)
	if err != nil {
		return nil, err
	}
	return f.connectSheets(ctx, config.GoogleSpreadsheetID, creds, config.CacheSize, config.CacheTTL)
}

// ConnectSheets implements Factory.ConnectSheets. Reads are cached and every
// write invalidates its worksheet.
func (f *DefaultFactory) ConnectSheets(ctx context.Context, spreadsheetID string, creds []byte) (*BackendResult, error) {
	return f.connectSheets(ctx, spreadsheetID, creds, defaultCacheSize, defaultCacheTTL)
}

func (f *DefaultFactory) connectSheets(ctx context.Context, spreadsheetID string, creds []byte, size int, ttl time.Duration) (*BackendResult, error) {
	if size <= 0 {
		size, ttl = defaultCacheSize, defaultCacheTTL
	}
	cli, err := gsheet.NewFromCredentials(ctx, spreadsheetID, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	store := sheets.NewCachedStore(cli, size, ttl)

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", spreadsheetID,
		"client_email", cli.Account())

	return &BackendResult{
		Store:    store,
		Cleaners: store.Cleaners(),
		Account:  cli.Account(),
	}, nil
}

// Credentials returns the service account key named by config, inline JSON
// taking precedence over a file.
func Credentials(config Config) ([]byte, error) {
	switch {
	case config.GoogleServiceAccountJSON != "":
		return []byte(config.GoogleServiceAccountJSON), nil
	case config.GoogleServiceAccountFile != "":
		data, err := os.ReadFile(config.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, ErrCredentialsRequired
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	worksheet := config.DefaultWorksheet
	if worksheet == "" {
		worksheet = "Sheet1"
	}

	store, err := memory.NewFromFiles(dataDir, worksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Store: store}, nil
}

// SweepAll registers every cache of the result with m.
func (r *BackendResult) SweepAll(m *cache.Manager) {
	m.Register(r.Cleaners...)
}

// ServiceOptions returns the InvoiceService options the backend implies.
func (r *BackendResult) ServiceOptions() []services.Option {
	var opts []services.Option
	if r.Publisher != nil {
		opts = append(opts, services.WithPublisher(r.Publisher))
	}
	return opts
}
