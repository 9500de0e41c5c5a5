package cmd

import (
	"context"
	"fmt"
	"time"

	"moneywave/config"
	"moneywave/database"
	"moneywave/events"
	"moneywave/infrastructure"
	"moneywave/observability"
	"moneywave/repository"
	"moneywave/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	if err := configureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	log.WithField("environment", cfg.Environment).Info("Starting moneywave...")

	// Database
	db, err := database.NewConnectionWithOptions(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// NATS ledger transport
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer func() {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}()

	subjects := infrastructure.NewLedgerSubjectMapper(cfg.NATSSubjectPrefix)
	if err := natsClient.EnsureStream(cfg.NATSStreamName, subjects.StreamSubjects(), 24*time.Hour); err != nil {
		return fmt.Errorf("failed to ensure ledger stream: %w", err)
	}
	ledger := infrastructure.NewNATSLedgerGateway(natsClient, subjects, cfg.LedgerTimeout)

	// Repositories
	gameRepo := repository.NewCachedGameRepository(repository.NewGameRepository(db), cfg.GameCacheSize, cfg.GameCacheTTL)
	sponsorRepo := repository.NewSponsorContributionRepository(db)

	// Event bus and metrics
	eventBus := events.NewBus()
	observability.NewEventMetricsCollector().Register(eventBus)

	// Services
	allocator := service.NewPrizePoolAllocator(cfg.TaxRate, cfg.InterestRate, cfg.Location())
	prizePool := service.NewPrizePoolService(allocator, ledger, sponsorRepo, cfg.ExpectedAnnualRevenue, cfg.InactiveFor())
	engine := service.NewSettlementEngine(cfg.PayoutMultiplier)
	gameService := service.NewGameService(gameRepo, ledger, prizePool, engine, eventBus)
	log.Info("Services initialized")

	// Ops server
	opsServer := NewOpsServer(cfg.MetricsAddr, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return db.Ping(ctx) },
		"nats": func(context.Context) error {
			if !natsClient.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		},
	}, prizePool)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- opsServer.Start()
	}()

	// Background workers
	stopExpiry := StartExpiryWorker(ctx, gameService, cfg.ExpiryCheckInterval)
	stopOutbox := StartOutboxWorker(ctx, gameService, cfg.OutboxRetryInterval, cfg.OutboxBatchSize)

	log.Info("moneywave is running")
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("ops server failed: %w", err)
		}
	}

	log.Info("Shutting down...")
	stopExpiry()
	stopOutbox()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error stopping ops server")
	}

	log.Info("Shutdown completed")
	return runErr
}
