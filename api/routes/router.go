package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evermark/servicedesk-backend/api/controllers"
	webhookcontrollers "github.com/evermark/servicedesk-backend/api/controllers/webhooks"
	"github.com/evermark/servicedesk-backend/api/middleware"
	"github.com/evermark/servicedesk-backend/internal/idempotency"
	"github.com/evermark/servicedesk-backend/internal/kpi"
	"github.com/evermark/servicedesk-backend/internal/notify"
	"github.com/evermark/servicedesk-backend/internal/recommend"
	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/internal/serials"
	"github.com/evermark/servicedesk-backend/pkg/config"
	"github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/metrics"
	"github.com/evermark/servicedesk-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	caseService rma.Service,
	serialService serials.Service,
	kpiService kpi.Service,
	recommendService recommend.Service,
	notifyService notify.Service,
	shopifyService webhookcontrollers.ShopifyWebhookService,
	guard *idempotency.Service,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.IPLimit)
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.WebhookIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The webhook intake keeps its own return-id dedup, so it bypasses the
	// operator and idempotency middleware and gets a looser rate budget.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if redisClient != nil {
			r.Use(middleware.RateLimit(webhookPolicy, redisClient, logg))
		}
		r.Post("/shopify", webhookcontrollers.ShopifyWebhook(shopifyService, cfg.Shopify.WebhookSecret, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Operator(logg))
		if redisClient != nil {
			r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))
		}
		if guard != nil {
			r.Use(middleware.Idempotency(guard, logg))
		}

		r.Route("/v1/cases", func(r chi.Router) {
			r.Post("/", controllers.CaseCreate(caseService, logg))
			r.Get("/", controllers.CaseList(caseService, logg))

			r.Route("/{caseId}", func(r chi.Router) {
				r.Get("/", controllers.CaseDetail(caseService, logg))
				r.Patch("/", controllers.CaseUpdate(caseService, logg))
				r.Post("/recommendation", controllers.CaseRecommendation(recommendService, logg))
				r.Post("/notify", controllers.CaseNotify(notifyService, logg))
			})
		})

		r.Route("/v1/serials/{serial}", func(r chi.Router) {
			r.Get("/history", controllers.SerialHistory(serialService, logg))
			r.Post("/events", controllers.SerialEventAppend(serialService, logg))
		})

		r.Get("/v1/kpis", controllers.KpiReport(kpiService, logg))
	})

	return r
}
