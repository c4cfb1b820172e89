package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manafoundation/wishlist-backend/api/controllers"
	webhookcontrollers "github.com/manafoundation/wishlist-backend/api/controllers/webhooks"
	"github.com/manafoundation/wishlist-backend/api/middleware"
	checkoutsvc "github.com/manafoundation/wishlist-backend/internal/checkout"
	"github.com/manafoundation/wishlist-backend/internal/orders"
	stripewebhook "github.com/manafoundation/wishlist-backend/internal/webhooks/stripe"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/pagination"
	"github.com/manafoundation/wishlist-backend/pkg/redis"
	"github.com/manafoundation/wishlist-backend/pkg/stripe"
)

type catalogLister interface {
	ListPublicPage(ctx context.Context, params pagination.Params) ([]models.FundableItem, string, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	catalogRepo catalogLister,
	sweeper orders.Sweeper,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/wishlist", controllers.PublicWishlist(catalogRepo, logg))
		r.Post("/checkout/session", controllers.CreateCheckoutSession(checkoutService, logg))

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
		})
	})

	r.Route("/api/ops/v1", func(r chi.Router) {
		r.Post("/orders/sweep", controllers.TriggerSweep(sweeper, logg))
	})

	return r
}
