package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-pos-settlement.git/internal/config"
	kafkax "github.com/ariefcatur/go-pos-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-pos-settlement.git/internal/logging"
	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
	"github.com/ariefcatur/go-pos-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-pos-settlement.git/internal/redisx"
	"github.com/ariefcatur/go-pos-settlement.git/internal/shutdown"
)

// The notifier tails the settlement stream and keeps the Redis order cache
// fresh, so GET /orders reflects terminal states without hitting Postgres.

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName + "-notifier")
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	repo := &pos.Repo{DB: db}
	group := getenv("NOTIFIER_GROUP", "pos-notifier")
	workers := getint("NOTIFIER_WORKERS", 4)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var env pos.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			logger.Warn("bad envelope, skipping", zap.Error(err))
			return nil
		}

		seen, err := redisx.SeenEvent(ctx, rdb, "notifier", env.EventID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		invoiceID, err := invoiceFromEvent(&env)
		if err != nil {
			logger.Warn("bad payload, skipping",
				zap.String("event_type", env.EventType), zap.Error(err))
			return nil
		}

		order, err := repo.GetByInvoiceID(ctx, invoiceID)
		if err != nil {
			if pos.KindOf(err) == pos.KindNotFound {
				logger.Warn("event for unknown order, skipping",
					zap.String("invoice_id", invoiceID))
				return nil
			}
			return err
		}
		b, err := json.Marshal(order)
		if err != nil {
			return err
		}
		if err := rdb.Set(ctx, redisx.OrderKey(invoiceID), b, redisx.TTLOrderCache).Err(); err != nil {
			return err
		}

		logger.Info("order state projected",
			zap.String("invoice_id", invoiceID),
			zap.String("event_type", env.EventType),
			zap.String("status", string(order.Status)),
			zap.String("payment_status", string(order.PaymentStatus)))
		return nil
	}

	topics := []string{pos.TopicOrderSettled, pos.TopicOrderFailed, pos.TopicOrderExpired}
	done := make(chan struct{}, len(topics))
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, logger)
		go func(topic string) {
			defer func() { done <- struct{}{} }()
			logger.Info("notifier consumer started",
				zap.String("group", group), zap.String("topic", topic), zap.Int("workers", workers))
			if err := cons.Start(ctx, handler); err != nil {
				logger.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	<-ctx.Done()
	logger.Info("shutting down notifier")
	for range topics {
		<-done
	}
}

func invoiceFromEvent(env *pos.Envelope) (string, error) {
	switch env.EventType {
	case pos.EventOrderSettled:
		p, err := kafkax.UnwrapPayload[pos.OrderSettledPayload](env.Payload)
		return p.InvoiceID, err
	case pos.EventOrderFailed:
		p, err := kafkax.UnwrapPayload[pos.OrderFailedPayload](env.Payload)
		return p.InvoiceID, err
	case pos.EventOrderExpired:
		p, err := kafkax.UnwrapPayload[pos.OrderExpiredPayload](env.Payload)
		return p.InvoiceID, err
	default:
		p, err := kafkax.UnwrapPayload[pos.OrderCreatedPayload](env.Payload)
		return p.InvoiceID, err
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
