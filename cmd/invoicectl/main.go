package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	"invoicedash/internal/config"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
)

var (
	worksheet string
	logLevel  string

	cfg    *config.Config
	logger *log.Logger

	rootCmd = &cobra.Command{
		Use:   "invoicectl",
		Short: "Inspect and update invoice worksheets from the command line",
		Long: `invoicectl works on the same record store as the dashboard.

The store is chosen with DATA_BACKEND (memory, sheets, sqlite) and the
other variables the server reads; a .env file in the working directory
is loaded first.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&worksheet, "worksheet", "w", "", "worksheet to use (default: DEFAULT_WORKSHEET)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(worksheetsCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(appendCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(credentialsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	cfg = config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if worksheet == "" {
		worksheet = cfg.DefaultWorksheet
	}
	logger = cli.SetupLoggerTo(cfg, log.ComponentCLI, os.Stderr)
	return nil
}

// openService builds the configured backend and the service over it. The
// caller closes the returned backend.
func openService(ctx context.Context) (*services.InvoiceService, *backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", bc.Type, err)
	}
	opts := append(res.ServiceOptions(),
		services.WithLogger(logger),
		services.WithTimeout(cfg.StoreTimeout))
	return services.NewInvoiceService(res.Store, opts...), res, nil
}

func closeBackend(res *backend.BackendResult) {
	if err := res.Close(); err != nil {
		logger.Error("Failed to close backend", log.FieldError, err)
	}
}
