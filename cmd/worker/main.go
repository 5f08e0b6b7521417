package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payments"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
	"github.com/ariefcatur/go-storefront-orders/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-worker"

	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.PostgresDSN == "" || cfg.RedisAddr == "" || len(cfg.KafkaBrokers) == 0 {
		log.Fatal("worker needs POSTGRES_DSN, REDIS_ADDR and KAFKA_BROKERS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			log.Fatal("init tracer", zap.Error(err))
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}
	inst, err := telemetry.NewInstruments()
	if err != nil {
		log.Fatal("init instruments", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	c := redisx.NewCache(rdb)

	// Status changes made here are published like the API's.
	orderEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	orderEvents.Start(ctx)

	ord := orders.NewService(&postgres.OrderStore{DB: db}, &postgres.CartStore{DB: db}, &postgres.CatalogStore{DB: db},
		orders.Pricing{
			TaxRate:               cfg.Pricing.TaxRate,
			FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
			FlatShipping:          cfg.Pricing.FlatShipping,
		}, c, log.Named("orders"))
	ord.Events = orderEvents
	ord.Metrics = inst
	ord.Producer = cfg.ServiceName

	pay := payments.NewService(nil, ord, c, cfg.Pricing.Currency, cfg.PaymentTimeout, log.Named("payments"))
	pay.Metrics = inst

	h := &worker.PaymentEvents{
		Payments: pay,
		Dedup:    redisx.NewDedup(rdb, "payments"),
		Logger:   log.Named("payment-events"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicPaymentEvents, cfg.WorkerConcurrency, log)

	go func() {
		log.Info("payment consumer started",
			zap.String("group", cfg.WorkerGroup), zap.String("topic", orders.TopicPaymentEvents),
			zap.Int("workers", cfg.WorkerConcurrency))
		if err := cons.Start(ctx, h.Handle); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	orderEvents.Close()
	cancel()
	orderEvents.WaitClosed()
}
