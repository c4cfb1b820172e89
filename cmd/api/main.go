package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/manafoundation/wishlist-backend/api/routes"
	"github.com/manafoundation/wishlist-backend/internal/campaigns"
	"github.com/manafoundation/wishlist-backend/internal/catalog"
	checkoutsvc "github.com/manafoundation/wishlist-backend/internal/checkout"
	"github.com/manafoundation/wishlist-backend/internal/donors"
	"github.com/manafoundation/wishlist-backend/internal/funding"
	"github.com/manafoundation/wishlist-backend/internal/ledger"
	"github.com/manafoundation/wishlist-backend/internal/orders"
	"github.com/manafoundation/wishlist-backend/internal/vendors"
	stripewebhook "github.com/manafoundation/wishlist-backend/internal/webhooks/stripe"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/migrate"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/redis"
	"github.com/manafoundation/wishlist-backend/pkg/stripe"
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	donorRepo := donors.NewRepository(conn)
	campaignRepo := campaigns.NewRepository(conn)
	vendorRepo := vendors.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	fundingRepo := funding.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	provider, err := checkoutsvc.NewStripeProvider(stripeClient, cfg.Stripe.RequestTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout provider", err)
		os.Exit(1)
	}
	checkoutService, err := checkoutsvc.NewService(catalogRepo, provider, cfg.Funding, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	fundingService, err := funding.NewService(
		dbClient,
		catalogRepo,
		ledgerRepo,
		donorRepo,
		campaignRepo,
		fundingRepo,
		outboxService,
		cfg.Funding,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create funding service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(fundingService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	sweeper, err := orders.NewSweeper(dbClient, catalogRepo, vendorRepo, orderRepo, outboxService, cfg.Org, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order sweeper", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			catalogRepo,
			sweeper,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
