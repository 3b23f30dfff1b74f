package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conti/internal/amqp"
	"conti/internal/backend"
	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/log"
	"conti/internal/metrics"
	"conti/internal/rooms"
	"conti/internal/services"
	"conti/internal/settlement"
)

// App wires the store, services and optional AMQP client from configuration.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Store       rooms.Store
	Metrics     *metrics.Metrics
	Settlements *services.SettlementService
	Expenses    *services.ExpenseService
	// AMQP is nil when AMQP_URL is empty or the broker was unreachable.
	AMQP *amqp.Client

	caches   *cache.Manager
	cleanups []func() error
}

// Bootstrap builds an App. requireAMQP turns a broker failure into an error
// instead of a warning.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, requireAMQP bool) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	app.Store = res.Store
	app.cleanups = append(app.cleanups, res.Cleanup)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		switch {
		case err == nil:
			app.AMQP = client
			app.cleanups = append(app.cleanups, client.Close)
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		case requireAMQP:
			_ = app.Close()
			return nil, fmt.Errorf("connect AMQP: %w", err)
		default:
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		}
	}

	var publisher services.Publisher
	if app.AMQP != nil {
		publisher = app.AMQP
	}

	settleOpts := services.SettlementOptions{Publisher: publisher, Metrics: app.Metrics, Logger: logger}
	if cfg.CacheEnabled() {
		lru := cache.NewLRUCache[settlement.Result](cfg.SettlementCacheSize, cfg.SettlementCacheTTL)
		settleOpts.Cache = lru
		if cfg.SettlementCacheTTL > 0 {
			app.caches = cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
			app.caches.Register(lru)
			app.caches.Start(ctx, max(cfg.SettlementCacheTTL, time.Minute))
		}
	}
	app.Settlements = services.NewSettlementService(app.Store, settleOpts)
	app.Expenses = services.NewExpenseService(app.Store, services.ExpenseOptions{
		Settlements: app.Settlements,
		Publisher:   publisher,
		Metrics:     app.Metrics,
		Logger:      logger,
	})
	return app, nil
}

// Close stops background work and releases resources in reverse order.
func (a *App) Close() error {
	if a.caches != nil {
		a.caches.Stop()
	}
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
