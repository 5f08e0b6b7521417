package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/cache"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payments"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/progression"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
	"github.com/ariefcatur/go-storefront-orders/internal/wishlist"
)

type stores struct {
	catalog   catalog.Catalog
	carts     cart.Store
	wishlists wishlist.Store
	orders    orders.Store
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			log.Fatal("init tracer", zap.Error(err))
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}
	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName)
	if err != nil {
		log.Fatal("init meter", zap.Error(err))
	}
	defer func() { _ = shutdownMeter(context.Background()) }()
	inst, err := telemetry.NewInstruments()
	if err != nil {
		log.Fatal("init instruments", zap.Error(err))
	}

	// Storage
	var st stores
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		st = stores{
			catalog:   &postgres.CatalogStore{DB: db},
			carts:     &postgres.CartStore{DB: db},
			wishlists: &postgres.WishlistStore{DB: db},
			orders:    &postgres.OrderStore{DB: db},
		}
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory storage")
		mem := memstore.New()
		st = stores{catalog: mem, carts: mem, wishlists: mem, orders: mem}
	}

	// Cache
	var c cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		c = redisx.NewCache(rdb)
	}

	// Services
	pricing := orders.Pricing{
		TaxRate:               cfg.Pricing.TaxRate,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShipping:          cfg.Pricing.FlatShipping,
	}
	carts := cart.NewService(st.carts, st.catalog, c, log.Named("cart"))
	carts.Metrics = inst
	wl := wishlist.NewService(st.wishlists, st.catalog, carts, c, log.Named("wishlist"))
	ord := orders.NewService(st.orders, st.carts, st.catalog, pricing, c, log.Named("orders"))
	ord.Metrics = inst
	ord.Producer = cfg.ServiceName

	var gateway payments.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, using sandbox payment gateway")
		sb := payments.NewSandbox()
		sb.AcceptWebhooks = cfg.SandboxWebhooks
		if sb.AcceptWebhooks {
			log.Warn("sandbox gateway accepts unsigned webhooks")
		}
		gateway = sb
	}
	pay := payments.NewService(gateway, ord, c, cfg.Pricing.Currency, cfg.PaymentTimeout, log.Named("payments"))
	pay.Metrics = inst

	// Kafka
	ph := &httpx.PaymentsHandler{Payments: pay, Service: cfg.ServiceName, Logger: log.Named("payments")}
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		orderEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
		orderEvents.Start(ctx)
		paymentEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentEvents, 1024, log)
		paymentEvents.Start(ctx)
		producers = append(producers, orderEvents, paymentEvents)
		ord.Events = orderEvents
		ph.Events = paymentEvents
	}

	// Status progression
	// The sweeper publishes order events, so it gets its own context and is
	// stopped before the producers are closed.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	var sweeper *progression.Sweeper
	if cfg.Progression.Enabled {
		sweeper = progression.NewSweeper(ord, st.orders, progression.Thresholds{
			Confirm: cfg.Progression.ConfirmAfter,
			Process: cfg.Progression.ProcessAfter,
			Ship:    cfg.Progression.ShipAfter,
			Deliver: cfg.Progression.DeliverAfter,
		}, cfg.Progression.Interval, log.Named("progression"))
		sweeper.Start(sweepCtx)
	}

	// HTTP
	router := httpx.NewRouter(log, metricsHandler)
	(&httpx.CartHandler{Carts: carts}).Register(router)
	(&httpx.WishlistHandler{Wishlist: wl}).Register(router)
	(&httpx.OrdersHandler{Orders: ord}).Register(router)
	ph.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	stopSweep()
	if sweeper != nil {
		sweeper.WaitClosed()
	}
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
