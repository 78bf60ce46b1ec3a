package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/assetdeck/assetdeck-backend/api/routes"
	cartsvc "github.com/assetdeck/assetdeck-backend/internal/cart"
	"github.com/assetdeck/assetdeck-backend/internal/catalog"
	checkoutsvc "github.com/assetdeck/assetdeck-backend/internal/checkout"
	"github.com/assetdeck/assetdeck-backend/internal/downloads"
	"github.com/assetdeck/assetdeck-backend/internal/entitlement"
	"github.com/assetdeck/assetdeck-backend/internal/licenses"
	"github.com/assetdeck/assetdeck-backend/internal/orders"
	stripewebhook "github.com/assetdeck/assetdeck-backend/internal/webhooks/stripe"
	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
	"github.com/assetdeck/assetdeck-backend/pkg/metrics"
	"github.com/assetdeck/assetdeck-backend/pkg/migrate"
	"github.com/assetdeck/assetdeck-backend/pkg/payment"
	"github.com/assetdeck/assetdeck-backend/pkg/redis"
)

const webhookReplayTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	backend, err := newPaymentBackend(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment backend", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartRepo := cartsvc.NewRepository(dbClient.DB())
	cartService, err := cartsvc.NewService(cartRepo, dbClient, catalogService, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	licenseService, err := licenses.NewService(licenses.NewRepository(dbClient.DB()), cfg.Licensing)
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}

	entitlementService, err := entitlement.NewService(catalogService, licenseService)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	downloadService, err := downloads.NewService(licenseService, catalogService, redisClient, cfg.Downloads, cfg.App.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create download service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.NewRepository(dbClient.DB()), licenseService, cartRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		catalogService,
		backend,
		orderService,
		checkoutsvc.NewSubscriptionRepo(dbClient.DB()),
		cfg,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookReplayTTL, "stripe_webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: orderService,
		Passes: checkoutService,
		Guard:  webhookGuard,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		HTTPMetrics:   metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Catalog:       catalogService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Entitlement:   entitlementService,
		Downloads:     downloadService,
		Licenses:      licenseService,
		Orders:        orderService,
		StripeWebhook: webhookService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"provider": cfg.Payment.NormalizedProvider(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}

func newPaymentBackend(cfg *config.Config) (payment.Backend, error) {
	if cfg.Payment.NormalizedProvider() == config.PaymentProviderStripe {
		return payment.NewStripeBackend(cfg.Stripe.APIKey)
	}
	return payment.NewMockBackend(), nil
}
