package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-pos-settlement.git/internal/config"
	kafkax "github.com/ariefcatur/go-pos-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-pos-settlement.git/internal/logging"
	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
	"github.com/ariefcatur/go-pos-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-pos-settlement.git/internal/shutdown"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName + "-sweeper")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, pos.TopicOrderExpired, 1024, logger)
	pExpired.Start(ctx)

	sw := &pos.Sweeper{
		Store:       &pos.Repo{DB: db},
		Ledger:      &pos.ReservationRepo{DB: db},
		Expired:     pExpired,
		TTL:         cfg.PendingOrderTTL,
		Interval:    cfg.SweepInterval,
		ServiceName: cfg.ServiceName + "-sweeper",
		Log:         logger,
	}

	logger.Info("sweeper started",
		zap.Duration("ttl", cfg.PendingOrderTTL),
		zap.Duration("interval", cfg.SweepInterval))

	if err := sw.Run(ctx); err != nil {
		logger.Error("sweeper exit", zap.Error(err))
	}

	pExpired.Close()
	pExpired.WaitClosed()
}
