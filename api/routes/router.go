package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-cart/api/controllers/cart"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// Dependencies carries what the HTTP surface needs. Replay and Limiter are optional;
// without them cart mutations are neither deduplicated nor throttled.
type Dependencies struct {
	Sessions  cartcontrollers.Sessions
	Seeder    cartcontrollers.Seeder
	Gatherer  prometheus.Gatherer
	Readiness map[string]controllers.Pinger
	Replay    middleware.ReplayStore
	Limiter   middleware.RateLimiterStore
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	sessions, seeder := deps.Sessions, deps.Seeder

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(middleware.IdentityOptions{
			JWT:          cfg.JWT,
			DeviceCookie: cfg.Cart.DeviceCookie,
			SecureCookie: !cfg.App.IsDev(),
		}, logg))

		r.Get("/ping", controllers.CartPing())

		r.Route("/cart", func(r chi.Router) {
			r.Use(
				middleware.RateLimit(middleware.NewRateLimitPolicy("cart-mutations", cfg.Cart.RateWindow, cfg.Cart.RateLimit), deps.Limiter, logg),
				middleware.Idempotency(deps.Replay, cfg.Cart.IdempotencyTTL, logg),
			)

			r.Get("/", cartcontrollers.CartFetch(sessions, seeder, logg))
			r.Delete("/", cartcontrollers.CartClear(sessions, logg))
			r.Post("/seed", cartcontrollers.CartSeed(sessions, seeder, logg))
			r.Get("/attribution", cartcontrollers.CartAttribution(seeder, logg))

			r.Route("/items", func(r chi.Router) {
				r.Post("/", cartcontrollers.CartAddItem(sessions, logg))
				r.Post("/batch", cartcontrollers.CartAddItems(sessions, logg))
				r.Patch("/{itemId}", cartcontrollers.CartUpdateQuantity(sessions, logg))
				r.Put("/{itemId}/subscription", cartcontrollers.CartUpdateSubscription(sessions, logg))
				r.Delete("/{itemId}", cartcontrollers.CartRemoveItem(sessions, logg))
			})

			r.Route("/gift-cards", func(r chi.Router) {
				r.Post("/", cartcontrollers.GiftCardApply(sessions, logg))
				r.Delete("/", cartcontrollers.GiftCardsClear(sessions, logg))
				r.Delete("/{code}", cartcontrollers.GiftCardRemove(sessions, logg))
			})
		})
	})

	return r
}
