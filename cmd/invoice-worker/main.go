package main

import (
	"os"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
	gsheet "invoicedash/internal/sheets/google"
	"invoicedash/internal/storage"
	"invoicedash/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting invoice-worker")

	// The journal the dashboard's sqlite backend writes to
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	creds, err := backend.Credentials(bc)
	if err != nil || cfg.GoogleSpreadsheetID == "" {
		logger.Error("The mirror needs GOOGLE_SPREADSHEET_ID and service account credentials", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	target, err := gsheet.NewFromCredentials(ctx, cfg.GoogleSpreadsheetID, creds)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"client_email", target.Account())

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	}

	processor := services.NewSyncProcessor(repo, target, services.DefaultSyncProcessorConfig(), logger)
	w := worker.New(consumer, processor, worker.Config{RetryDelay: 5 * time.Second, MaxRetries: 10}, logger)

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
