package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assetdeck/assetdeck-backend/api/controllers"
	webhookcontrollers "github.com/assetdeck/assetdeck-backend/api/controllers/webhooks"
	"github.com/assetdeck/assetdeck-backend/api/middleware"
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
	"github.com/assetdeck/assetdeck-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	HTTPMetrics *metrics.HTTPMetrics

	Catalog     catalog.Service
	Cart        cartsvc.Service
	Checkout    checkoutsvc.Service
	Entitlement entitlement.Service
	Downloads   downloads.Service
	Licenses    licenses.Service
	Orders      orders.Service

	StripeWebhook *stripewebhook.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, cfg.Stripe.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Get("/{slug}", controllers.ProductDetail(deps.Catalog, logg))
		})

		// Tokens carry their own authorization; the redemption route is
		// reachable without a session so native download managers work.
		r.Get("/download/file", controllers.DownloadFile(deps.Downloads, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/intent", controllers.CheckoutIntent(deps.Checkout, logg))
				r.Post("/access-pass", controllers.AccessPassCreate(deps.Checkout, logg))
			})

			r.Get("/download/{productId}", controllers.DownloadRequest(deps.Entitlement, deps.Downloads, logg))

			r.Get("/licenses", controllers.LicenseList(deps.Licenses, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			})
		})
	})

	return r
}
