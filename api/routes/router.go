package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmexchange-backend/api/controllers"
	"github.com/angelmondragon/farmexchange-backend/api/middleware"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/pkg/config"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
	"github.com/angelmondragon/farmexchange-backend/pkg/metrics"
	"github.com/angelmondragon/farmexchange-backend/pkg/redis"
)

// Deps carries what the router needs beyond configuration. Store and Limiter
// may be nil, which disables idempotency replay and purchase throttling.
type Deps struct {
	Marketplace marketplace.Service
	Metrics     *metrics.Marketplace
	Gatherer    prometheus.Gatherer
	Store       redis.IdempotencyStore
	Limiter     redis.RateLimiter
	Ready       []controllers.Dependency
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.CORS),
	)

	svc := deps.Marketplace
	idempotent := middleware.Idempotency(deps.Store, cfg.Eventing.IdempotencyTTL, logg)
	purchaseLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("purchase", cfg.RateLimit.PurchaseWindow, cfg.RateLimit.PurchaseLimit),
		deps.Limiter,
		logg,
	)
	farmerOnly := middleware.RequireRole(enums.UserTypeFarmer, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready...))
	})

	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/harvests", func(r chi.Router) {
			r.Get("/", controllers.BrowseHarvests(svc, logg))
			r.With(farmerOnly, idempotent).Post("/", controllers.CreateHarvest(svc, logg))

			r.Route("/{harvestId}", func(r chi.Router) {
				r.Get("/", controllers.GetHarvest(svc, logg))
				r.With(farmerOnly).Get("/movements", controllers.HarvestMovements(svc, logg))
				r.With(farmerOnly).Patch("/", controllers.EditHarvest(svc, logg))
				r.With(farmerOnly).Delete("/", controllers.DeleteHarvest(svc, logg))
				r.With(purchaseLimit, idempotent).Post("/purchase", controllers.PurchaseHarvest(svc, logg))
			})
		})

		r.With(farmerOnly).Get("/inventory", controllers.ManageInventory(svc, logg))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(svc, logg))
			r.Route("/{transactionId}", func(r chi.Router) {
				r.Get("/", controllers.GetTransaction(svc, logg))
				r.With(idempotent).Post("/approve", controllers.ApproveTransaction(svc, logg))
				r.With(idempotent).Post("/reject", controllers.RejectTransaction(svc, logg))
				r.With(idempotent).Post("/cancel", controllers.CancelTransaction(svc, logg))
				r.With(idempotent).Post("/review", controllers.LeaveReview(svc, logg))
			})
		})

		r.Get("/sellers/{sellerId}/reviews", controllers.SellerReviews(svc, logg))
		r.With(farmerOnly).Get("/analytics/sales", controllers.SalesAnalytics(svc, logg))
	})

	return r
}
