package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"invoicedash/internal/backend"
	"invoicedash/internal/cache"
	"invoicedash/internal/cli"
	apphttp "invoicedash/internal/http"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
	"invoicedash/internal/session"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)

	caches := cache.NewManager(logger)
	sessions := session.NewManager(cfg.SessionTTL, 0, logger)
	caches.Register(sessions.Cleaner())

	var svc *services.InvoiceService
	if res != nil {
		opts := append(res.ServiceOptions(),
			services.WithLogger(logger),
			services.WithTimeout(cfg.StoreTimeout))
		svc = services.NewInvoiceService(res.Store, opts...)
		res.SweepAll(caches)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Logger:   logger,
		Sessions: sessions,
		Factory:  backend.NewFactory(logger),
		Default:  svc,
		Mailer:   cli.NewMailer(cfg, logger),
		Caches:   caches,
		Settings: apphttp.Settings{
			DefaultWorksheet: cfg.DefaultWorksheet,
			SpreadsheetID:    cfg.GoogleSpreadsheetID,
			AllowUpload:      cfg.AllowCredentialUpload,
			MailConcurrency:  cfg.MailConcurrency,
			StoreTimeout:     cfg.StoreTimeout,
			SecureCookies:    cfg.SecureCookies,
		},
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting invoicedash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"worksheet", cfg.DefaultWorksheet)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
