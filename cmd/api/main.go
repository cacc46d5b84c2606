package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-pos-settlement.git/internal/config"
	"github.com/ariefcatur/go-pos-settlement.git/internal/gateway"
	"github.com/ariefcatur/go-pos-settlement.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-pos-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-pos-settlement.git/internal/logging"
	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
	"github.com/ariefcatur/go-pos-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-pos-settlement.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, pos.TopicOrderCreated, 1024, logger)
	pCreated.Start(ctx)
	pSettled := kafkax.NewProducer(cfg.KafkaBrokers, pos.TopicOrderSettled, 1024, logger)
	pSettled.Start(ctx)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, pos.TopicOrderFailed, 1024, logger)
	pFailed.Start(ctx)

	// Payment gateway
	gw := gateway.NewClient(gateway.Config{
		BaseURL:          cfg.GatewayBaseURL,
		KeyID:            cfg.GatewayKeyID,
		Secret:           cfg.GatewaySecret,
		Currency:         cfg.Currency,
		CurrencyExponent: cfg.CurrencyExponent,
		MinAmountMinor:   cfg.MinAmountMinor,
	})

	repo := &pos.Repo{DB: db}
	svc := &pos.Service{
		Store:       repo,
		Ledger:      &pos.ReservationRepo{DB: db},
		Gateway:     gw,
		Verifier:    gateway.NewVerifier(cfg.GatewaySecret),
		Created:     pCreated,
		Settled:     pSettled,
		Failed:      pFailed,
		ServiceName: cfg.ServiceName,
		Log:         logger,
	}

	router := httpx.NewRouter()
	h := &httpx.PosHandler{Service: svc, Repo: repo, Redis: rdb, Log: logger}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pCreated, pSettled, pFailed} {
		p.Close()
	}
	cancel()
	for _, p := range []*kafkax.Producer{pCreated, pSettled, pFailed} {
		p.WaitClosed()
	}
}
