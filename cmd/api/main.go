package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fixbench/repair-desk/internal/api/http"
	"github.com/fixbench/repair-desk/internal/api/http/handlers"
	"github.com/fixbench/repair-desk/internal/config"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/observability"
	"github.com/fixbench/repair-desk/internal/persistence"
	"github.com/fixbench/repair-desk/internal/repository"
	"github.com/fixbench/repair-desk/internal/repository/boltstore"
	"github.com/fixbench/repair-desk/internal/repository/postgres"
	"github.com/fixbench/repair-desk/internal/service"
	"github.com/fixbench/repair-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	var redis *persistence.Redis
	if cfg.Audit.Enabled {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	}

	bus := events.NewBus(logger.Named("events"))
	metrics := observability.NewMetrics()
	worker.StartMetricsWorker(bus, metrics)

	workLogService := service.NewWorkLogService(service.WorkLogDependencies{
		Store:      store,
		Dispatcher: bus,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		WorkLogs:   workLogService,
		Dispatcher: bus,
		Logger:     logger,
	})
	partsService := service.NewPartsService(service.PartsDependencies{
		Store:      store,
		Dispatcher: bus,
		Logger:     logger,
	})
	invoiceService := service.NewInvoiceService(service.InvoiceDependencies{
		Store:      store,
		Dispatcher: bus,
		Logger:     logger,
		Policy:     cfg.Invoice.Policy(),
	})
	customerService := service.NewCustomerService(service.CustomerDependencies{
		Store:      store,
		Dispatcher: bus,
		Logger:     logger,
	})

	if redis != nil {
		auditService := service.NewAuditService(bus, redis, logger.Named("audit"), cfg.Audit)
		worker.StartAuditWorker(auditService)
		defer auditService.Close()
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Driver, store, redis),
		Customers: handlers.NewCustomersHandler(customerService),
		Tickets:   handlers.NewTicketsHandler(ticketService),
		Labor:     handlers.NewLaborHandler(workLogService),
		Parts:     handlers.NewPartsHandler(partsService),
		Invoices:  handlers.NewInvoicesHandler(invoiceService),
		Metrics:   metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// openStore connects the configured backend and returns its closer.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func()) {
	if cfg.Store.Driver == config.StoreDriverPostgres {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return postgres.NewStore(pg.PoolHandle()), pg.Close
	}

	db, err := persistence.OpenBolt(cfg.Bolt, logger)
	if err != nil {
		logger.Fatal("failed to open bolt store", zap.Error(err))
	}
	store, err := boltstore.NewStore(db)
	if err != nil {
		_ = db.Close()
		logger.Fatal("failed to prepare bolt store", zap.Error(err))
	}
	return store, func() { _ = db.Close() }
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
