package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/core"
	"invoicedash/internal/log"
	"invoicedash/internal/sheets"
	"invoicedash/internal/storage"
)

// MirrorSource is the journaled store the mirror copies from.
type MirrorSource interface {
	ReadAll(ctx context.Context, worksheet string) (core.RawTable, error)
	ListUnsynced(ctx context.Context, limit int) ([]storage.WriteRecord, error)
	MarkWorksheetSynced(ctx context.Context, worksheet string) (int64, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to look for writes whose sync message was
	// lost (default: 1m). Zero disables polling.
	PollInterval time.Duration

	// BatchSize is the max number of journal entries inspected per poll (default: 50)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    50,
	}
}

// SyncProcessor mirrors sqlite worksheets to another store by full
// overwrite. It reacts to sync messages and, when polling is enabled,
// picks up journal entries that were never announced.
type SyncProcessor struct {
	source MirrorSource
	target sheets.TableWriter
	config SyncProcessorConfig
	logger *log.Logger

	// serialises mirrors so two overwrites of one sheet never interleave
	mirrorMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(source MirrorSource, target sheets.TableWriter, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncProcessor{
		source: source,
		target: target,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Mirror copies worksheet from the source to the target and marks its
// pending writes as synced.
func (p *SyncProcessor) Mirror(ctx context.Context, worksheet string) error {
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()

	raw, err := p.source.ReadAll(ctx, worksheet)
	if err != nil {
		return fmt.Errorf("read %q: %w", worksheet, err)
	}
	if len(raw.Header) == 0 {
		raw.Header = core.Columns
	}
	if err := p.target.WriteAll(ctx, worksheet, raw.Header, raw.Rows); err != nil {
		return fmt.Errorf("mirror %q: %w", worksheet, err)
	}

	n, err := p.source.MarkWorksheetSynced(ctx, worksheet)
	if err != nil {
		// The mirror is current; the next message or poll rewrites it again.
		p.logger.WarnContext(ctx, "Failed to mark writes as synced",
			log.FieldWorksheet, worksheet,
			log.FieldError, err)
		return nil
	}

	p.logger.InfoContext(ctx, "Worksheet mirrored",
		log.FieldWorksheet, worksheet,
		log.FieldRowCount, len(raw.Rows),
		"writes", n,
		log.FieldOperation, log.OpSync)
	return nil
}

// HandleMessage is the amqp.SyncHandler for the worker.
func (p *SyncProcessor) HandleMessage(ctx context.Context, msg *amqp.WorksheetSyncMessage) error {
	return p.Mirror(ctx, msg.Worksheet)
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	// Catch up on startup
	p.ProcessPending(ctx)

	if p.config.PollInterval <= 0 {
		select {
		case <-p.stopCh:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending mirrors every worksheet that has unsynced journal entries
// and returns the worksheets it mirrored.
func (p *SyncProcessor) ProcessPending(ctx context.Context) []string {
	pending, err := p.source.ListUnsynced(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list unsynced writes", log.FieldError, err)
		return nil
	}

	var mirrored []string
	seen := make(map[string]bool)
	for _, w := range pending {
		if seen[w.Worksheet] {
			continue
		}
		seen[w.Worksheet] = true

		select {
		case <-ctx.Done():
			return mirrored
		default:
		}

		if err := p.Mirror(ctx, w.Worksheet); err != nil {
			p.logger.ErrorContext(ctx, "Sync processing failed",
				log.FieldWorksheet, w.Worksheet,
				log.FieldWriteID, w.ID,
				log.FieldError, err)
			continue
		}
		mirrored = append(mirrored, w.Worksheet)
	}
	return mirrored
}
