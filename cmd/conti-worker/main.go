package main

import (
	"context"
	"errors"
	"os"
	"time"

	"conti/internal/cli"
	"conti/internal/config"
	"conti/internal/log"
	"conti/internal/sheets"
	gsheet "conti/internal/sheets/google"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting conti-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	app, err := cli.Bootstrap(ctx, cfg, logger, cfg.AMQPURL != "")
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}()

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewSettlementWorker(app.Settlements, app.Store, exporter, app.Metrics, logger,
		worker.Config{Concurrency: cfg.WorkerConcurrency})

	logger.Info("Performing startup refresh", log.FieldOperation, log.OpRefresh)
	if err := w.RefreshAll(ctx); err != nil {
		logger.Error("Startup refresh failed", log.FieldError, err)
	}

	if cfg.RefreshInterval > 0 {
		go periodicRefresh(ctx, w, cfg.RefreshInterval, logger)
	}

	if app.AMQP == nil {
		logger.Info("AMQP disabled, waiting for shutdown")
		<-ctx.Done()
		return
	}

	if err := app.AMQP.ConsumeExpenseRecorded(ctx, w.HandleExpenseRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// newExporter returns a nil interface when no spreadsheet is configured.
func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.SettlementExporter, error) {
	// The worker skips export only on a nil interface, never a nil *gsheet.Client.
	var none sheets.SettlementExporter
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return none, nil
	}
	client, err := gsheet.NewFromEnv(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetPrefix:   cfg.GoogleSheetPrefix,
		Exponent:      int32(cfg.AmountExponent),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

func periodicRefresh(ctx context.Context, w *worker.SettlementWorker, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RefreshAll(ctx); err != nil {
				logger.Error("Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}
