package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"conti/internal/cli"
	apphttp "conti/internal/http"
	"conti/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	app, err := cli.Bootstrap(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Settlements:        app.Settlements,
		Expenses:           app.Expenses,
		Store:              app.Store,
		Metrics:            app.Metrics,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AmountExponent:     int32(cfg.AmountExponent),
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting conti server", "port", cfg.Port, "backend", cfg.DataBackend,
			"amqp_enabled", app.AMQP != nil, "cache_enabled", cfg.CacheEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
