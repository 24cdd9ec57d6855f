package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/evermark/servicedesk-backend/api/routes"
	"github.com/evermark/servicedesk-backend/internal/idempotency"
	"github.com/evermark/servicedesk-backend/internal/inventory"
	"github.com/evermark/servicedesk-backend/internal/kpi"
	"github.com/evermark/servicedesk-backend/internal/notify"
	"github.com/evermark/servicedesk-backend/internal/recommend"
	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/internal/serials"
	shopifywebhook "github.com/evermark/servicedesk-backend/internal/webhooks/shopify"
	"github.com/evermark/servicedesk-backend/pkg/ai"
	"github.com/evermark/servicedesk-backend/pkg/campaigns"
	"github.com/evermark/servicedesk-backend/pkg/config"
	"github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/dedupe"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/metrics"
	"github.com/evermark/servicedesk-backend/pkg/migrate"
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/redis"
	"github.com/evermark/servicedesk-backend/pkg/ticketing"
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

	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	serialSvc, err := serials.NewService(serials.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create serials service", err)
		os.Exit(1)
	}

	ticketsClient, err := ticketing.NewClient(
		cfg.Ticketing.APIKey,
		ticketing.WithBaseURL(cfg.Ticketing.BaseURL),
		ticketing.WithHTTPClient(&http.Client{Timeout: cfg.Ticketing.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ticketing client", err)
		os.Exit(1)
	}

	caseRepo := rma.NewRepository(gdb)
	inventoryRepo := inventory.NewRepository(gdb)
	caseSvc, err := rma.NewService(caseRepo, dbClient, outboxSvc, serialSvc, ticketsClient, inventoryRepo, logg, cfg.Sla.Due)
	if err != nil {
		logg.Error(context.Background(), "failed to create case service", err)
		os.Exit(1)
	}

	kpiSvc, err := kpi.NewService(kpi.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create kpi service", err)
		os.Exit(1)
	}

	aiClient, err := ai.NewClient(
		cfg.AI.APIKey,
		ai.WithBaseURL(cfg.AI.BaseURL),
		ai.WithModel(cfg.AI.Model),
		ai.WithHTTPClient(&http.Client{Timeout: cfg.AI.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ai client", err)
		os.Exit(1)
	}

	recommendSvc, err := recommend.NewService(caseRepo, serialSvc, aiClient, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create recommendation service", err)
		os.Exit(1)
	}

	campaignsClient, err := campaigns.NewClient(
		cfg.Campaigns.APIKey,
		campaigns.WithBaseURL(cfg.Campaigns.BaseURL),
		campaigns.WithHTTPClient(&http.Client{Timeout: cfg.Campaigns.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create campaigns client", err)
		os.Exit(1)
	}

	notifySvc, err := notify.NewService(caseRepo, campaignsClient, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notify service", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewService(idempotency.NewRepository(gdb), cfg.Idempotency.InProgressTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	// Redis markers for webhook deliveries live as long as finished
	// idempotency records do.
	dedupeManager, err := dedupe.NewManager(redisClient, cfg.Idempotency.Retention)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedupe guard", err)
		os.Exit(1)
	}

	shopifySvc, err := shopifywebhook.NewService(shopifywebhook.ServiceParams{
		Cases:     caseSvc,
		Guard:     dedupeManager,
		Inventory: inventoryRepo,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shopify webhook service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			caseSvc,
			serialSvc,
			kpiSvc,
			recommendSvc,
			notifySvc,
			shopifySvc,
			guard,
			httpMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
