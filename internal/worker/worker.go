// Package worker runs the sheet mirror: it listens for worksheet sync
// messages and keeps a polling loop for writes whose message never arrived.
package worker

import (
	"context"
	"errors"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
)

// Consumer delivers sync messages until ctx is done.
type Consumer interface {
	ConsumeWorksheetSync(ctx context.Context, handler amqp.SyncHandler) error
}

// Config controls how the worker recovers from a lost broker connection.
type Config struct {
	// RetryDelay is the pause before consuming again after the consumer
	// stopped with an error (default: 5s).
	RetryDelay time.Duration
	// MaxRetries bounds the failed consume attempts. Zero retries
	// forever.
	MaxRetries int
}

// Worker ties a Consumer to a SyncProcessor.
type Worker struct {
	consumer  Consumer
	processor *services.SyncProcessor
	config    Config
	logger    *log.Logger
}

// New creates a worker. consumer may be nil, then only the polling loop
// of processor runs.
func New(consumer Consumer, processor *services.SyncProcessor, config Config, logger *log.Logger) *Worker {
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Worker{
		consumer:  consumer,
		processor: processor,
		config:    config,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run mirrors worksheets until ctx is done. It returns nil on a clean
// shutdown and the last consumer error once MaxRetries is exhausted.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = w.processor.Stop(stopCtx)
	}()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "No message broker configured, polling only")
		<-ctx.Done()
		return nil
	}

	failures := 0
	for {
		err := w.consumer.ConsumeWorksheetSync(ctx, w.processor.HandleMessage)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("consumer stopped")
		}

		failures++
		w.logger.ErrorContext(ctx, "Message consumption failed",
			log.FieldError, err,
			"attempt", failures)
		if w.config.MaxRetries > 0 && failures >= w.config.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.config.RetryDelay):
		}
	}
}
